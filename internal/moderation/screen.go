// Package moderation screens entry text for spam before it reaches a board.
// Screening is optional and runs in front of the entry store; the store
// itself accepts any valid text.
package moderation

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// Bare domains need a trailing path so "v2.0" or "3.14" pass.
	linkPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|\S+\.(com|net|org|io|co|xyz|info|biz|ru|cn|tk|ml|ga|cf)/\S*)`)

	// Anchored on whitespace so ordinary numbers like "100" pass.
	phonePattern = regexp.MustCompile(`(?:^|\s)(\+?\d{1,3}[-.\s]?)?\(?\d{2,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}(?:\s|$)`)
)

// Verdict is the outcome of screening one text.
type Verdict struct {
	Blocked bool   `json:"blocked"`
	Rule    string `json:"rule,omitempty"`   // "link", "phone", "char_flood", "word_flood"
	Reason  string `json:"reason,omitempty"` // human readable
}

type rule struct {
	name   string
	reason string
	match  func(string) bool
}

// rules run in order; the first match wins.
var rules = []rule{
	{"link", "links are not allowed", linkPattern.MatchString},
	{"phone", "phone numbers are not allowed", phonePattern.MatchString},
	{"char_flood", "too many repeated characters", charFlood},
	{"word_flood", "too many repeated words", wordFlood},
}

// Screen checks text against the spam rules.
func Screen(text string) Verdict {
	for _, r := range rules {
		if r.match(text) {
			return Verdict{Blocked: true, Rule: r.name, Reason: r.reason}
		}
	}
	return Verdict{}
}

// charFlood reports 5 or more identical runes in a row.
func charFlood(text string) bool {
	const limit = 5

	run, prev := 0, rune(-1)
	for _, r := range text {
		if r != prev {
			run, prev = 0, r
		}
		run++
		if run >= limit {
			return true
		}
	}
	return false
}

// wordFlood reports the same word (case-insensitive) 3 or more times in a row.
func wordFlood(text string) bool {
	const limit = 3

	run, prev := 0, ""
	for _, w := range strings.FieldsFunc(text, unicode.IsSpace) {
		w = strings.ToLower(w)
		if w != prev {
			run, prev = 0, w
		}
		run++
		if run >= limit {
			return true
		}
	}
	return false
}
