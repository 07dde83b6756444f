package authsdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrNoSession is returned when no session has been persisted.
var ErrNoSession = errors.New("authsdk: not signed in")

// StoredSession is the client-side copy of a signed-in identity: the
// bearer token plus a snapshot of the user. It is replaced wholesale and
// never edited in place.
type StoredSession struct {
	AccessToken string    `json:"access_token"`
	AdminMode   bool      `json:"admin_mode,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// NewStoredSession captures a sign-in response.
func NewStoredSession(resp *AuthResponse, now time.Time) StoredSession {
	return StoredSession{
		AccessToken: resp.AccessToken,
		AdminMode:   resp.AdminMode,
		ExpiresAt:   now.Add(time.Duration(resp.ExpiresIn) * time.Second),
		User:        resp.User,
	}
}

// WithUser returns a copy carrying a new user snapshot, for example after
// a profile update.
func (s StoredSession) WithUser(u User) StoredSession {
	s.User = u
	return s
}

// SessionPersister is durable storage for one StoredSession.
type SessionPersister interface {
	// Load returns ErrNoSession when nothing is stored.
	Load() (StoredSession, error)
	Save(StoredSession) error
	Delete() error
}

// FileSessionStore keeps the session as a JSON file readable only by the
// current user.
type FileSessionStore struct {
	Path string
}

// DefaultSessionPath is <user config dir>/quickfix/session.json.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "quickfix", "session.json"), nil
}

func (f *FileSessionStore) Load() (StoredSession, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return StoredSession{}, ErrNoSession
	}
	if err != nil {
		return StoredSession{}, fmt.Errorf("read session: %w", err)
	}

	var s StoredSession
	if err := json.Unmarshal(data, &s); err != nil {
		return StoredSession{}, fmt.Errorf("decode session: %w", err)
	}
	if s.AccessToken == "" {
		return StoredSession{}, ErrNoSession
	}
	return s, nil
}

// Save writes to a temporary file and renames it over the old one, so a
// crash never leaves a half written session behind.
func (f *FileSessionStore) Save(s StoredSession) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name()) // no-op after a successful rename
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod session: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

func (f *FileSessionStore) Delete() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// SessionContext owns the client-local identity. It is loaded once with
// Hydrate, replaced with Persist after every sign-in or profile change,
// and removed with Clear on logout. Readers take the SessionContext as a
// dependency and call Current.
type SessionContext struct {
	store SessionPersister

	mu      sync.RWMutex
	current *StoredSession
}

// NewSessionContext binds a context to durable storage. Nothing is read
// until Hydrate.
func NewSessionContext(store SessionPersister) *SessionContext {
	return &SessionContext{store: store}
}

// Init loads the persisted session, giving up if ctx is already done.
// It is Hydrate for callers that only need the side effect.
func (c *SessionContext) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.Hydrate()
	return err
}

// Hydrate loads the persisted session. The token is not checked with the
// server: an expired or revoked token is still loaded and the first
// authenticated call reports it. An unreadable file is discarded and
// treated as signed out.
func (c *SessionContext) Hydrate() (*StoredSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.store.Load()
	switch {
	case errors.Is(err, ErrNoSession):
		c.current = nil
	case err != nil:
		c.current = nil
		if delErr := c.store.Delete(); delErr != nil {
			return nil, errors.Join(err, delErr)
		}
	default:
		c.current = &s
	}
	if c.current == nil {
		return nil, nil
	}
	cp := *c.current
	return &cp, nil
}

// Persist replaces the stored session.
func (c *SessionContext) Persist(s StoredSession) error {
	if s.AccessToken == "" {
		return errors.New("authsdk: refusing to persist a session without a token")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Save(s); err != nil {
		return err
	}
	c.current = &s
	return nil
}

// Clear removes the stored session.
func (c *SessionContext) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(); err != nil {
		return err
	}
	c.current = nil
	return nil
}

// Current returns the loaded session. It returns ErrNoSession when signed
// out or before Hydrate.
func (c *SessionContext) Current() (StoredSession, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil {
		return StoredSession{}, ErrNoSession
	}
	return *c.current, nil
}

// Session returns an authenticated Session for the loaded token.
func (c *SessionContext) Session(client *SDKClient) (*Session, error) {
	s, err := c.Current()
	if err != nil {
		return nil, err
	}
	return client.NewSession(s.AccessToken), nil
}
