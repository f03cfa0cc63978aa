// Package credentials stores the servers and bearer tokens stagerctl talks
// to, grouped into named contexts.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/marmos91/stager/pkg/api/auth"
)

const (
	// DefaultConfigDir is the default directory for stagerctl configuration.
	DefaultConfigDir = "stagerctl"
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "config.json"
	// FilePermissions for config files (read/write for owner only).
	FilePermissions = 0600
	// DirPermissions for config directories.
	DirPermissions = 0700
)

var (
	// ErrNoCurrentContext indicates no context is currently set.
	ErrNoCurrentContext = errors.New("no current context set - run 'stagerctl context set' first")
	// ErrContextNotFound indicates the requested context doesn't exist.
	ErrContextNotFound = errors.New("context not found")
)

// Context is one stager server and the token used against it.
type Context struct {
	ServerURL string `json:"server_url"`
	Token     string `json:"token,omitempty"`
}

// TokenInfo is what a token claims about itself. It is read without
// verifying the signature; the server remains the authority.
type TokenInfo struct {
	Subject   string
	Role      auth.Role
	ExpiresAt time.Time
}

// TokenInfo decodes the claims of the context token. It returns nil when the
// context has no token or the token is not a JWT.
func (c *Context) TokenInfo() *TokenInfo {
	if c.Token == "" {
		return nil
	}
	claims := &auth.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, claims); err != nil {
		return nil
	}
	info := &TokenInfo{Subject: claims.Subject, Role: claims.Role}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info
}

// IsExpired reports whether the context token carries an expiry in the past.
// Contexts without a token, or with an opaque one, never expire.
func (c *Context) IsExpired() bool {
	info := c.TokenInfo()
	if info == nil || info.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(info.ExpiresAt)
}

// Config represents the complete stagerctl configuration.
type Config struct {
	CurrentContext string              `json:"current_context"`
	Contexts       map[string]*Context `json:"contexts"`
}

// Store manages credential storage and retrieval.
type Store struct {
	configPath string
	config     *Config
}

// NewStore opens the store at the default location.
func NewStore() (*Store, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewStoreAt(configPath)
}

// NewStoreAt opens the store backed by configPath. A missing file yields an
// empty store.
func NewStoreAt(configPath string) (*Store, error) {
	store := &Store{configPath: configPath}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		store.config = &Config{Contexts: make(map[string]*Context)}
	}
	if store.config.Contexts == nil {
		store.config.Contexts = make(map[string]*Context)
	}

	return store, nil
}

// getConfigPath returns the path to the config file.
func getConfigPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}

	return filepath.Join(configHome, DefaultConfigDir, ConfigFileName), nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		return err
	}

	s.config = &Config{}
	if err := json.Unmarshal(data, s.config); err != nil {
		return fmt.Errorf("invalid credentials file %s: %w", s.configPath, err)
	}
	return nil
}

func (s *Store) save() error {
	dir := filepath.Dir(s.configPath)
	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(s.config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.configPath, data, FilePermissions)
}

// GetCurrentContext returns the current context.
func (s *Store) GetCurrentContext() (*Context, error) {
	if s.config.CurrentContext == "" {
		return nil, ErrNoCurrentContext
	}
	return s.GetContext(s.config.CurrentContext)
}

// GetCurrentContextName returns the name of the current context.
func (s *Store) GetCurrentContextName() string {
	return s.config.CurrentContext
}

// GetContext returns a specific context by name.
func (s *Store) GetContext(name string) (*Context, error) {
	ctx, ok := s.config.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContextNotFound, name)
	}
	return ctx, nil
}

// ListContexts returns all context names, sorted.
func (s *Store) ListContexts() []string {
	names := make([]string, 0, len(s.config.Contexts))
	for name := range s.config.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SetContext creates or updates a context. The first context created
// becomes the current one.
func (s *Store) SetContext(name string, ctx *Context) error {
	s.config.Contexts[name] = ctx
	if s.config.CurrentContext == "" {
		s.config.CurrentContext = name
	}
	return s.save()
}

// UseContext switches to a different context.
func (s *Store) UseContext(name string) error {
	if _, ok := s.config.Contexts[name]; !ok {
		return fmt.Errorf("%w: %s", ErrContextNotFound, name)
	}
	s.config.CurrentContext = name
	return s.save()
}

// DeleteContext removes a context.
func (s *Store) DeleteContext(name string) error {
	if _, ok := s.config.Contexts[name]; !ok {
		return fmt.Errorf("%w: %s", ErrContextNotFound, name)
	}

	delete(s.config.Contexts, name)
	if s.config.CurrentContext == name {
		s.config.CurrentContext = ""
	}

	return s.save()
}

// ConfigPath returns the path to the config file.
func (s *Store) ConfigPath() string {
	return s.configPath
}
