package identity

import (
	"errors"
	"fmt"
)

const (
	KeyUsername         = "username"
	KeyFullName         = "fullName"
	KeyLanguage         = "language"
	KeyEnableTwoFactor  = "enable2FA"
	KeyTwoFactorSecret  = "twoFactorSecret"
	KeyTwoFactorEnabled = "twoFactorEnabled"
)

var ErrInvalidMetadata = errors.New("invalid metadata")

// Metadata is the typed view of the provider's metadata bag. Keys the
// client does not model are kept in Extra and written back unchanged.
type Metadata struct {
	Username         string
	FullName         string
	Language         string
	EnableTwoFactor  bool
	TwoFactorSecret  *string
	TwoFactorEnabled bool
	Extra            map[string]any
}

// ParseMetadata validates the provider's untyped bag. A known key holding
// the wrong type is an error; null is treated as absent.
func ParseMetadata(raw map[string]any) (Metadata, error) {
	var m Metadata
	for key, value := range raw {
		if value == nil {
			continue
		}
		var err error
		switch key {
		case KeyUsername:
			m.Username, err = asString(key, value)
		case KeyFullName:
			m.FullName, err = asString(key, value)
		case KeyLanguage:
			m.Language, err = asString(key, value)
		case KeyEnableTwoFactor:
			m.EnableTwoFactor, err = asBool(key, value)
		case KeyTwoFactorEnabled:
			m.TwoFactorEnabled, err = asBool(key, value)
		case KeyTwoFactorSecret:
			var secret string
			secret, err = asString(key, value)
			if err == nil && secret != "" {
				m.TwoFactorSecret = &secret
			}
		default:
			if m.Extra == nil {
				m.Extra = map[string]any{}
			}
			m.Extra[key] = value
		}
		if err != nil {
			return Metadata{}, err
		}
	}
	return m, nil
}

func asString(key string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidMetadata, key, value)
	}
	return s, nil
}

func asBool(key string, value any) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean, got %T", ErrInvalidMetadata, key, value)
	}
	return b, nil
}

// Map renders the metadata as the provider's bag. Zero values are omitted.
func (m Metadata) Map() map[string]any {
	out := make(map[string]any, len(m.Extra)+6)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Username != "" {
		out[KeyUsername] = m.Username
	}
	if m.FullName != "" {
		out[KeyFullName] = m.FullName
	}
	if m.Language != "" {
		out[KeyLanguage] = m.Language
	}
	if m.EnableTwoFactor {
		out[KeyEnableTwoFactor] = true
	}
	if m.TwoFactorSecret != nil {
		out[KeyTwoFactorSecret] = *m.TwoFactorSecret
	}
	if m.TwoFactorEnabled {
		out[KeyTwoFactorEnabled] = true
	}
	return out
}

func (m Metadata) Clone() Metadata {
	out := m
	if m.TwoFactorSecret != nil {
		secret := *m.TwoFactorSecret
		out.TwoFactorSecret = &secret
	}
	if m.Extra != nil {
		out.Extra = make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// MetadataPatch is a partial metadata update. Nil fields are left alone.
type MetadataPatch struct {
	Username             *string
	FullName             *string
	Language             *string
	TwoFactorSecret      *string
	ClearTwoFactorSecret bool
	TwoFactorEnabled     *bool
}

func (p MetadataPatch) Empty() bool {
	return p.Username == nil && p.FullName == nil && p.Language == nil &&
		p.TwoFactorSecret == nil && !p.ClearTwoFactorSecret && p.TwoFactorEnabled == nil
}

// Map renders the patch for the provider. A cleared key maps to nil.
func (p MetadataPatch) Map() map[string]any {
	out := map[string]any{}
	if p.Username != nil {
		out[KeyUsername] = *p.Username
	}
	if p.FullName != nil {
		out[KeyFullName] = *p.FullName
	}
	if p.Language != nil {
		out[KeyLanguage] = *p.Language
	}
	if p.ClearTwoFactorSecret {
		out[KeyTwoFactorSecret] = nil
	} else if p.TwoFactorSecret != nil {
		out[KeyTwoFactorSecret] = *p.TwoFactorSecret
	}
	if p.TwoFactorEnabled != nil {
		out[KeyTwoFactorEnabled] = *p.TwoFactorEnabled
	}
	return out
}

// Apply returns m with the patch applied.
func (p MetadataPatch) Apply(m Metadata) Metadata {
	out := m.Clone()
	if p.Username != nil {
		out.Username = *p.Username
	}
	if p.FullName != nil {
		out.FullName = *p.FullName
	}
	if p.Language != nil {
		out.Language = *p.Language
	}
	if p.ClearTwoFactorSecret {
		out.TwoFactorSecret = nil
	} else if p.TwoFactorSecret != nil {
		secret := *p.TwoFactorSecret
		out.TwoFactorSecret = &secret
	}
	if p.TwoFactorEnabled != nil {
		out.TwoFactorEnabled = *p.TwoFactorEnabled
	}
	return out
}
