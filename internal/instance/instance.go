// File: internal/instance/instance.go

// Package instance maps logical notebook names to stable instance keys.
// Every process that resolves the same name must arrive at the same key with
// no shared coordination service; the mapping is therefore a pure function.
package instance

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
)

// numericPrefix matches names following the "01. Research Notes" convention:
// a short numeric prefix ended by a dot or whitespace.
var numericPrefix = regexp.MustCompile(`^(\d+)[.\s]`)

// Resolve derives the instance key for a notebook name.
//
// Names with a numeric prefix keep a human-meaningful short key ("nb_01");
// notebooks sharing a prefix share a key and a profile. All other names get
// "nb_" plus the first 8 hex characters of the name's MD5, which is
// filesystem-safe, bounded in length and effectively unique.
func Resolve(identifier string) string {
	if m := numericPrefix.FindStringSubmatch(identifier); m != nil {
		return "nb_" + m[1]
	}
	sum := md5.Sum([]byte(identifier))
	return "nb_" + hex.EncodeToString(sum[:])[:8]
}
