package output

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/satecha/satecha/internal/i18n"
	"github.com/satecha/satecha/internal/identity"
	"github.com/satecha/satecha/internal/profile"
	"github.com/satecha/satecha/internal/twofactor"
	"golang.org/x/text/language"
)

// JSON prints v as indented JSON.
func JSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

type IdentityJSON struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Username         string `json:"username,omitempty"`
	FullName         string `json:"fullName,omitempty"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

func NewIdentityJSON(id *identity.Identity) IdentityJSON {
	return IdentityJSON{
		ID:               id.ID,
		Email:            id.Email,
		Username:         id.Metadata.Username,
		FullName:         id.Metadata.FullName,
		TwoFactorEnabled: id.Metadata.TwoFactorEnabled,
	}
}

type ProfileJSON struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Language string `json:"language"`
}

func NewProfileJSON(p *profile.Profile) ProfileJSON {
	return ProfileJSON{
		UserID:   p.UserID,
		Email:    p.Email,
		Username: p.Username,
		Role:     p.Role,
		Language: i18n.Code(p.Language),
	}
}

type EnrollmentJSON struct {
	Secret    string `json:"secret"`
	URI       string `json:"uri"`
	Confirmed bool   `json:"confirmed"`
}

func NewEnrollmentJSON(e *twofactor.Enrollment) EnrollmentJSON {
	return EnrollmentJSON{Secret: e.Secret, URI: e.URI, Confirmed: e.Confirmed}
}

// Message prints a translated line.
func Message(w io.Writer, lang language.Tag, key string, args ...interface{}) {
	if len(args) == 0 {
		fmt.Fprintln(w, i18n.T(lang, key))
		return
	}
	fmt.Fprintln(w, i18n.Sprintf(lang, key, args...))
}

// SignedIn prints who is signed in.
func SignedIn(w io.Writer, lang language.Tag, id *identity.Identity) {
	Message(w, lang, i18n.KeySignedInAs, id.Email)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", id.ID)
	if id.Metadata.Username != "" {
		fmt.Fprintf(tw, "%s:\t%s\n", i18n.T(lang, i18n.KeyProfileUsername), id.Metadata.Username)
	}
	fmt.Fprintf(tw, "2FA:\t%v\n", id.Metadata.TwoFactorEnabled)
	tw.Flush()
}

// Enrollment prints the secret and URI to add to an authenticator app.
func Enrollment(w io.Writer, lang language.Tag, e *twofactor.Enrollment) {
	Message(w, lang, i18n.KeyTwoFactorEnrolled, e.Secret)
	Message(w, lang, i18n.KeyTwoFactorScan, e.URI)
}

// Profile prints profile details.
func Profile(w io.Writer, lang language.Tag, p *profile.Profile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Email:\t%s\n", p.Email)
	fmt.Fprintf(tw, "%s:\t%s\n", i18n.T(lang, i18n.KeyProfileUsername), p.Username)
	fmt.Fprintf(tw, "%s:\t%s\n", i18n.T(lang, i18n.KeyProfileRole), p.Role)
	fmt.Fprintf(tw, "%s:\t%s\n", i18n.T(lang, i18n.KeyProfileLanguage), i18n.Code(p.Language))
	tw.Flush()
}
