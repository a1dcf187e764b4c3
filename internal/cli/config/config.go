// Package config holds the CLI settings: environment variables and the
// session file kept between invocations.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/satecha/satecha/internal/identity"
)

const (
	dirName    = "satecha"
	fileName   = "session.json"
	dirPerms   = 0700
	filePerms  = 0600
	DefaultURL = "http://localhost:8080"
)

// Env is read from the environment on every invocation.
type Env struct {
	ProviderURL      string `env:"SATECHA_PROVIDER_URL" envDefault:"http://localhost:8080"`
	AnonKey          string `env:"SATECHA_ANON_KEY"`
	TOTPIssuer       string `env:"SATECHA_TOTP_ISSUER" envDefault:"Satecha"`
	EnforceTwoFactor bool   `env:"SATECHA_ENFORCE_2FA" envDefault:"false"`
	StrictTwoFactor  bool   `env:"SATECHA_STRICT_2FA" envDefault:"false"`
	Language         string `env:"SATECHA_LANG"`
}

func ParseEnv() (Env, error) {
	var cfg Env
	if err := env.Parse(&cfg); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// StoredSession is the provider session saved after a command.
type StoredSession struct {
	ProviderURL  string    `json:"provider_url"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
}

func FromSession(providerURL string, sess *identity.Session) *StoredSession {
	stored := &StoredSession{
		ProviderURL:  providerURL,
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
	}
	if sess.Identity != nil {
		stored.UserID = sess.Identity.ID
		stored.Email = sess.Identity.Email
	}
	return stored
}

// Session rebuilds the provider session. The identity holds only the id
// and email; the provider reloads the rest.
func (s *StoredSession) Session() *identity.Session {
	return &identity.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
		Identity:     &identity.Identity{ID: s.UserID, Email: s.Email},
	}
}

// Path returns the full path to the session file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dirName, fileName), nil
}

// Load reads the saved session. It returns nil, not an error, when there
// is none.
func Load() (*StoredSession, error) {
	p, err := Path()
	if err != nil {
		return nil, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var stored StoredSession
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	if stored.AccessToken == "" {
		return nil, nil
	}
	return &stored, nil
}

// Save writes the session to disk, creating the directory if needed.
func Save(stored *StoredSession) error {
	p, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), dirPerms); err != nil {
		return err
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, filePerms)
}

// Clear removes the session file.
func Clear() error {
	p, err := Path()
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
