// Package live keeps the inbox cache fresh from the service's websocket
// channel. It only invalidates; it never carries note content.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// EventInbox is the update event that means the user's inbox changed.
const EventInbox = "inbox"

type Message struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Body  json.RawMessage `json:"body,omitempty"`
}

type Invalidator interface {
	Invalidate()
}

type Config struct {
	BaseURL string
	// Credential is read before every dial so a re-login is picked up.
	Credential func() string
	Dialer     *websocket.Dialer
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Logger     logrus.FieldLogger
}

type Subscriber struct {
	endpoint   string
	credential func() string
	dialer     *websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     logrus.FieldLogger
	target     Invalidator

	connects atomic.Int64
	events   atomic.Int64
}

func NewSubscriber(cfg Config, target Invalidator) (*Subscriber, error) {
	if target == nil {
		return nil, errors.New("live: invalidation target is required")
	}
	if cfg.Credential == nil {
		return nil, errors.New("live: credential source is required")
	}
	endpoint, err := wsEndpoint(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	s := &Subscriber{
		endpoint:   endpoint,
		credential: cfg.Credential,
		dialer:     cfg.Dialer,
		minBackoff: cfg.MinBackoff,
		maxBackoff: cfg.MaxBackoff,
		logger:     cfg.Logger,
		target:     target,
	}
	if s.dialer == nil {
		s.dialer = websocket.DefaultDialer
	}
	if s.minBackoff <= 0 {
		s.minBackoff = time.Second
	}
	if s.maxBackoff < s.minBackoff {
		s.maxBackoff = 30 * time.Second
		if s.maxBackoff < s.minBackoff {
			s.maxBackoff = s.minBackoff
		}
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	return s, nil
}

func wsEndpoint(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("live: parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("live: unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}

// Connects is the number of successful dials.
func (s *Subscriber) Connects() int64 { return s.connects.Load() }

// Events is the number of inbox events that caused an invalidation.
func (s *Subscriber) Events() int64 { return s.events.Load() }

// Run dials and listens until ctx is cancelled, reconnecting with capped
// exponential backoff. It always returns ctx.Err().
func (s *Subscriber) Run(ctx context.Context) error {
	backoff := s.minBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = s.minBackoff
		}
		s.logger.WithError(err).WithField("retry_in", backoff.String()).Debug("live channel disconnected")

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}

func (s *Subscriber) session(ctx context.Context) (bool, error) {
	credential := s.credential()
	if credential == "" {
		return false, errors.New("live: no credential")
	}

	conn, _, err := s.dialer.DialContext(ctx, s.endpoint+"?token="+url.QueryEscape(credential), nil)
	if err != nil {
		return false, fmt.Errorf("live: dial: %w", err)
	}
	s.connects.Add(1)
	s.logger.Debug("live channel connected")

	// Anything pushed while disconnected was missed.
	s.target.Invalidate()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				continue
			}
			return true, err
		}
		if msg.Type == "update" && msg.Event == EventInbox {
			s.events.Add(1)
			s.target.Invalidate()
		}
	}
}
