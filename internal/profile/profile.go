// Package profile derives the display profile of the signed-in user from
// the provider identity and the profile table.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/satecha/satecha/internal/emailutil"
	"github.com/satecha/satecha/internal/i18n"
	"github.com/satecha/satecha/internal/identity"
	"github.com/satecha/satecha/internal/session"
	"github.com/satecha/satecha/pkg/logger"
	"golang.org/x/text/language"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	MaxUsernameLength = 50
)

var (
	ErrNotFound  = errors.New("profile not found")
	ErrSignedOut = errors.New("not signed in")
)

// Record is a row of the profile table. Empty fields are unset.
type Record struct {
	UserID   string
	Username string
	Role     string
	Language string
}

// RecordPatch is a partial profile update. Nil fields are left alone.
type RecordPatch struct {
	Username *string
	Language *string
}

// Source reads and writes profile rows. FetchProfile returns ErrNotFound
// when the user has no row.
type Source interface {
	FetchProfile(ctx context.Context, userID string) (*Record, error)
	UpdateProfile(ctx context.Context, patch RecordPatch) (*Record, error)
}

type Profile struct {
	UserID   string
	Email    string
	Username string
	Role     string
	Language language.Tag
}

func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Project combines an identity with its profile row. rec may be nil.
func Project(id *identity.Identity, rec *Record) Profile {
	p := Profile{UserID: id.ID, Email: id.Email, Role: RoleUser}

	switch {
	case rec != nil && rec.Username != "":
		p.Username = rec.Username
	case id.Metadata.Username != "":
		p.Username = id.Metadata.Username
	default:
		p.Username = emailutil.LocalPart(id.Email)
	}

	if rec != nil && rec.Role != "" {
		p.Role = rec.Role
	}

	pref := id.Metadata.Language
	if rec != nil && rec.Language != "" {
		pref = rec.Language
	}
	p.Language = i18n.Match(pref)
	return p
}

type Projector struct {
	source Source
	store  *session.Store
}

func NewProjector(source Source, store *session.Store) *Projector {
	return &Projector{source: source, store: store}
}

// Current projects the signed-in user. When the profile row cannot be read
// the projection falls back to the identity alone.
func (p *Projector) Current(ctx context.Context) (*Profile, error) {
	id := p.store.Identity()
	if id == nil {
		return nil, ErrSignedOut
	}

	rec, err := p.source.FetchProfile(ctx, id.ID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.WarnWithUser(id.ID, "profile_fetch_failed", map[string]interface{}{"error": err.Error()})
		}
		rec = nil
	}

	out := Project(id, rec)
	return &out, nil
}

type Preferences struct {
	Username *string
	Language *language.Tag
}

// UpdatePreferences writes username and language to the profile table.
func (p *Projector) UpdatePreferences(ctx context.Context, prefs Preferences) (*Profile, error) {
	id := p.store.Identity()
	if id == nil {
		return nil, ErrSignedOut
	}

	var patch RecordPatch
	if prefs.Username != nil {
		username := strings.TrimSpace(*prefs.Username)
		if username == "" || utf8.RuneCountInString(username) > MaxUsernameLength {
			return nil, fmt.Errorf("username must be between 1 and %d characters", MaxUsernameLength)
		}
		patch.Username = &username
	}
	if prefs.Language != nil {
		tag, ok := i18n.Parse(prefs.Language.String())
		if !ok {
			return nil, fmt.Errorf("unsupported language %q", prefs.Language.String())
		}
		code := i18n.Code(tag)
		patch.Language = &code
	}
	if patch.Username == nil && patch.Language == nil {
		return nil, errors.New("no fields to update")
	}

	rec, err := p.source.UpdateProfile(ctx, patch)
	if err != nil {
		return nil, err
	}
	logger.InfoWithUser(id.ID, "profile_preferences_updated", nil)

	out := Project(id, rec)
	return &out, nil
}
