// Package stamp embeds a content fingerprint in uploaded markup so that an
// unchanged document can be recognized on the next run.
package stamp

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

var blockPattern = regexp.MustCompile("(?s)```\\s*\\{\\s*settings=\"timsync\"[^}\\n]*\\}\\n(.*?)```")

type settings struct {
	Hash string `yaml:"hash"`
}

// Fingerprint returns the hex encoded SHA-1 of markup.
func Fingerprint(markup string) string {
	sum := sha1.Sum([]byte(markup))
	return hex.EncodeToString(sum[:])
}

// Header returns the settings block carrying fingerprint.
func Header(fingerprint string) string {
	return fmt.Sprintf("``` {settings=\"timsync\"}\nhash: %s\n```\n", fingerprint)
}

// Apply prepends the fingerprint block of markup to markup.
func Apply(markup string) string {
	return Header(Fingerprint(markup)) + "\n\n" + markup
}

// Extract returns the fingerprint embedded in remote markup. ok is false when
// there is no well formed block.
func Extract(remote string) (fingerprint string, ok bool) {
	m := blockPattern.FindStringSubmatch(remote)
	if m == nil {
		return "", false
	}
	var s settings
	if err := yaml.Unmarshal([]byte(m[1]), &s); err != nil || s.Hash == "" {
		return "", false
	}
	return s.Hash, true
}

// Matches reports whether remote already carries the fingerprint of markup.
func Matches(remote, markup string) bool {
	fp, ok := Extract(remote)
	return ok && fp == Fingerprint(markup)
}
