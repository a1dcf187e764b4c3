// Package i18n holds the static English and Burmese string table used by
// the CLI screens and the language preference stored on profiles.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var supportedTags = []language.Tag{
	language.English,
	language.Burmese,
}

var tagMatcher = language.NewMatcher(supportedTags)

func init() {
	for key, english := range tables[language.English] {
		message.SetString(language.English, key, english)
		burmese, ok := tables[language.Burmese][key]
		if !ok {
			burmese = english
		}
		message.SetString(language.Burmese, key, burmese)
	}
}

// Supported returns the list of supported language tags.
func Supported() []language.Tag {
	tags := make([]language.Tag, len(supportedTags))
	copy(tags, supportedTags)
	return tags
}

// Default returns the default language tag.
func Default() language.Tag {
	return language.English
}

// Parse reports the supported tag for an exact language code such as "en"
// or "my".
func Parse(value string) (language.Tag, bool) {
	parsed, err := language.Parse(strings.TrimSpace(value))
	if err != nil {
		return language.Tag{}, false
	}
	base, _ := parsed.Base()
	for _, tag := range supportedTags {
		if supportedBase, _ := tag.Base(); supportedBase == base {
			return tag, true
		}
	}
	return language.Tag{}, false
}

// Match picks the closest supported language for a preference. The
// preference may be a single tag or an Accept-Language style list.
func Match(pref string) language.Tag {
	pref = strings.TrimSpace(pref)
	if pref == "" {
		return Default()
	}
	if tag, ok := Parse(pref); ok {
		return tag
	}
	tags, _, err := language.ParseAcceptLanguage(pref)
	if err != nil || len(tags) == 0 {
		return Default()
	}
	_, index, confidence := tagMatcher.Match(tags...)
	if confidence == language.No {
		return Default()
	}
	return supportedTags[index]
}

// Code returns the short code persisted for a tag.
func Code(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

// T returns the string for key in the tag's language, falling back to
// English and then to the key itself.
func T(tag language.Tag, key string) string {
	tag = Match(tag.String())
	if value, ok := tables[tag][key]; ok {
		return value
	}
	if value, ok := tables[language.English][key]; ok {
		return value
	}
	return key
}

// Sprintf formats a table entry with arguments.
func Sprintf(tag language.Tag, key string, args ...interface{}) string {
	return message.NewPrinter(Match(tag.String())).Sprintf(key, args...)
}
