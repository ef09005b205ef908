// Package api is the typed gateway to the note service REST surface.
// It normalizes every failure into *Error and never retries.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dropnote/internal/model"
)

const maxBodyBytes = 1 << 20

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("api: invalid base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}, nil
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type contentBody struct {
	Content string `json:"content"`
}

type AuthResponse struct {
	Credential string
	User       model.AuthUser
}

func (r *AuthResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		Credential string         `json:"credential"`
		Token      string         `json:"token"`
		User       model.AuthUser `json:"user"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Credential = raw.Credential
	if r.Credential == "" {
		r.Credential = raw.Token
	}
	r.User = raw.User
	return nil
}

type DropResponse struct {
	Message string `json:"message"`
	NoteID  string `json:"noteId,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type inboxResponse struct {
	Note  *model.Note  `json:"note"`
	Notes []model.Note `json:"notes"`
}

func (c *Client) Register(ctx context.Context, email, password string) (AuthResponse, error) {
	return do[AuthResponse](ctx, c, http.MethodPost, "/api/auth/register", "", credentialsBody{Email: email, Password: password})
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	return do[AuthResponse](ctx, c, http.MethodPost, "/api/auth/login", "", credentialsBody{Email: email, Password: password})
}

func (c *Client) DropNote(ctx context.Context, credential, content string) (DropResponse, error) {
	return do[DropResponse](ctx, c, http.MethodPost, "/api/notes/drop", credential, contentBody{Content: content})
}

// FetchInbox returns the single received note, or nil when the inbox is empty.
// A list-shaped response is reduced to its first received note.
func (c *Client) FetchInbox(ctx context.Context, credential string) (*model.Note, error) {
	resp, err := do[inboxResponse](ctx, c, http.MethodGet, "/api/notes/inbox", credential, nil)
	if err != nil {
		return nil, err
	}
	note := resp.Note
	if note == nil {
		for i := range resp.Notes {
			if resp.Notes[i].Role == model.RoleReceived || resp.Notes[i].Role == "" {
				note = &resp.Notes[i]
				break
			}
		}
	}
	// Everything in the inbox was received by the caller.
	if note != nil && note.Role == "" {
		note.Role = model.RoleReceived
	}
	return note, nil
}

func (c *Client) SendReply(ctx context.Context, credential, noteID, content string) (MessageResponse, error) {
	path := "/api/notes/" + url.PathEscape(noteID) + "/reply"
	return do[MessageResponse](ctx, c, http.MethodPost, path, credential, contentBody{Content: content})
}

func (c *Client) FetchProfile(ctx context.Context, credential string) (model.Profile, error) {
	return do[model.Profile](ctx, c, http.MethodGet, "/api/users/me", credential, nil)
}

func (c *Client) DeleteAccount(ctx context.Context, credential string) (MessageResponse, error) {
	return do[MessageResponse](ctx, c, http.MethodDelete, "/api/gdpr/delete", credential, nil)
}

func do[T any](ctx context.Context, c *Client, method, path, credential string, body any) (T, error) {
	var out T

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return out, fmt.Errorf("api: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return out, transportError(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		apiErr := transportError(err)
		apiErr.Status = resp.StatusCode
		return out, apiErr
	}
	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, statusError(resp.StatusCode, statusText(resp), parseBody(raw, isJSON))
	}

	if isJSON && len(raw) > 0 {
		// Undecodable success bodies degrade to the zero payload.
		_ = json.Unmarshal(raw, &out)
	}
	return out, nil
}

func parseBody(raw []byte, isJSON bool) any {
	if !isJSON {
		return string(raw)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// statusText strips the numeric code from resp.Status ("404 Not Found" -> "Not Found").
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprintf("%d", resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}
