package chat

import (
	"context"
	"strings"
	"unicode"
)

type Responder interface {
	Respond(ctx context.Context, message string) (string, error)
}

// topic matches a message on whole words. A stem matches any word that
// starts with it; a phrase matches a run of whole words, its last word
// optionally plural.
type topic struct {
	stems   []string
	phrases []string
	answer  string
}

// KeywordResponder answers security awareness questions from a fixed set of
// topics. The first matching topic wins.
type KeywordResponder struct {
	topics   []topic
	fallback string
}

var _ Responder = (*KeywordResponder)(nil)

func NewKeywordResponder() *KeywordResponder {
	return &KeywordResponder{
		topics: []topic{
			{
				stems:   []string{"phish", "scam"},
				phrases: []string{"suspicious email"},
				answer:  "Phishing messages push you to act fast. Check the sender address, hover over links before clicking, and never enter a password on a page you reached from an email.",
			},
			{
				stems:  []string{"password", "passphrase"},
				answer: "Use a long, unique passphrase for every account and keep them in a password manager. Length matters more than symbols.",
			},
			{
				stems:   []string{"authenticator"},
				phrases: []string{"2fa", "two-factor", "two factor", "mfa"},
				answer:  "Turn on two-factor authentication with an authenticator app. A stolen password alone is then not enough to get into your account.",
			},
			{
				phrases: []string{"wifi", "wi-fi", "public network", "vpn"},
				answer:  "Treat public Wi-Fi as hostile. Prefer sites with HTTPS, avoid signing in to sensitive accounts, and use a trusted VPN when you must.",
			},
			{
				stems:  []string{"malware", "virus", "ransomware", "trojan"},
				answer: "Keep your system and apps updated, install software only from official sources, and back up important files offline so ransomware cannot hold them hostage.",
			},
			{
				stems:   []string{"scan", "firewall"},
				phrases: []string{"port"},
				answer:  "Open ports are doors into a machine. Close services you do not use and keep a firewall enabled on every network you join.",
			},
			{
				stems:  []string{"updat", "patch"},
				answer: "Install security updates promptly. Most attacks use flaws that already have a fix available.",
			},
		},
		fallback: "I can help with phishing, passwords, two-factor authentication, public Wi-Fi, malware and updates. What would you like to know?",
	}
}

func (r *KeywordResponder) Respond(_ context.Context, message string) (string, error) {
	words := strings.FieldsFunc(strings.ToLower(message), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '-'
	})
	for _, t := range r.topics {
		if t.matches(words) {
			return t.answer, nil
		}
	}
	return r.fallback, nil
}

func (t topic) matches(words []string) bool {
	for _, w := range words {
		for _, stem := range t.stems {
			if strings.HasPrefix(w, stem) {
				return true
			}
		}
	}
	for _, phrase := range t.phrases {
		if containsPhrase(words, strings.Fields(phrase)) {
			return true
		}
	}
	return false
}

func containsPhrase(words, phrase []string) bool {
	n := len(phrase)
	for i := 0; i+n <= len(words); i++ {
		ok := true
		for j, p := range phrase {
			w := words[i+j]
			if w == p || (j == n-1 && w == p+"s") {
				continue
			}
			ok = false
			break
		}
		if ok {
			return true
		}
	}
	return false
}
