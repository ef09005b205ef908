package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CredentialKey is the fixed storage key for the bearer credential.
const CredentialKey = "dropnote_token"

// CredentialStore persists the bearer credential. Load returns "" when
// nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, credential string) error
	Delete(ctx context.Context) error
}

type MemoryStore struct {
	mu         sync.Mutex
	credential string
}

func NewMemoryStore(initial string) *MemoryStore {
	return &MemoryStore{credential: initial}
}

func (m *MemoryStore) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credential, nil
}

func (m *MemoryStore) Save(_ context.Context, credential string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = credential
	return nil
}

func (m *MemoryStore) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = ""
	return nil
}

// FileStore keeps a small JSON key/value file on disk.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type persistedState struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values"`
	SavedAt int64             `json:"savedAt"`
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.read()
	if err != nil {
		return "", err
	}
	return state.Values[CredentialKey], nil
}

func (f *FileStore) Save(_ context.Context, credential string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.read()
	if err != nil {
		state = persistedState{}
	}
	if state.Values == nil {
		state.Values = make(map[string]string)
	}
	state.Values[CredentialKey] = credential
	return f.write(state)
}

func (f *FileStore) Delete(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := state.Values[CredentialKey]; !ok {
		return nil
	}
	delete(state.Values, CredentialKey)
	return f.write(state)
}

func (f *FileStore) read() (persistedState, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return persistedState{Version: 1}, nil
		}
		return persistedState{}, err
	}
	if len(data) == 0 {
		return persistedState{Version: 1}, nil
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return persistedState{}, err
	}
	if state.Version != 1 {
		return persistedState{}, errors.New("unsupported credential state version")
	}
	return state, nil
}

func (f *FileStore) write(state persistedState) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	state.Version = 1
	state.SavedAt = time.Now().UnixMilli()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}

// RedisStore shares the credential between processes through Redis.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, key: prefix + CredentialKey}
}

func (r *RedisStore) Load(ctx context.Context) (string, error) {
	val, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *RedisStore) Save(ctx context.Context, credential string) error {
	return r.client.Set(ctx, r.key, credential, 0).Err()
}

func (r *RedisStore) Delete(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
