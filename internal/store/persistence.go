package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"dropnote/internal/model"
)

type persistedStateFile struct {
	Version  int             `json:"version"`
	Accounts []model.Account `json:"accounts"`
	Notes    []model.Note    `json:"notes"`
	Replies  []model.Reply   `json:"replies"`
	SavedAt  int64           `json:"savedAt"`
}

func (s *Store) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var file persistedStateFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Version != 1 {
		return errors.New("unsupported state version")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range file.Accounts {
		if acc.ID == "" || acc.Email == "" {
			continue
		}
		s.accountsByID[acc.ID] = acc
		s.accountIDByEmail[acc.Email] = acc.ID
	}
	// The latest note per receiver is the one in their inbox.
	sort.Slice(file.Notes, func(i, j int) bool { return file.Notes[i].CreatedAt.Before(file.Notes[j].CreatedAt) })
	for _, n := range file.Notes {
		if n.ID == "" || n.ReceiverID == "" {
			continue
		}
		s.notesByID[n.ID] = n
		s.inboxByUser[n.ReceiverID] = n.ID
	}
	for _, r := range file.Replies {
		if _, ok := s.notesByID[r.NoteID]; ok {
			s.replies[r.NoteID] = r
		}
	}
	return nil
}

// snapshotLocked returns nil when persistence is disabled.
func (s *Store) snapshotLocked() *persistedStateFile {
	if s.stateFile == "" {
		return nil
	}

	file := &persistedStateFile{Version: 1}
	for _, acc := range s.accountsByID {
		file.Accounts = append(file.Accounts, acc)
	}
	for _, n := range s.notesByID {
		file.Notes = append(file.Notes, n)
	}
	for _, r := range s.replies {
		file.Replies = append(file.Replies, r)
	}
	sort.Slice(file.Accounts, func(i, j int) bool { return file.Accounts[i].ID < file.Accounts[j].ID })
	sort.Slice(file.Notes, func(i, j int) bool { return file.Notes[i].ID < file.Notes[j].ID })
	sort.Slice(file.Replies, func(i, j int) bool { return file.Replies[i].NoteID < file.Replies[j].NoteID })
	return file
}

func (s *Store) persist(file *persistedStateFile) {
	path := s.stateFile
	if path == "" || file == nil {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	log := s.logger.WithField("file", path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.WithError(err).Warn("state persistence: mkdir failed")
		return
	}

	file.SavedAt = s.now().UnixMilli()
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		log.WithError(err).Warn("state persistence: marshal failed")
		return
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		log.WithError(err).Warn("state persistence: create temp failed")
		return
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		log.WithError(err).Warn("state persistence: chmod temp failed")
		return
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		log.WithError(err).Warn("state persistence: write temp failed")
		return
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		log.WithError(err).Warn("state persistence: sync temp failed")
		return
	}
	if err := tmp.Close(); err != nil {
		log.WithError(err).Warn("state persistence: close temp failed")
		return
	}
	if err := os.Rename(tmpName, path); err != nil {
		log.WithError(err).Warn("state persistence: rename failed")
		return
	}
}
