// Package gameid generates short, shareable session codes.
package gameid

import (
	"crypto/rand"
	"fmt"
)

// Crockford's base32 alphabet: unambiguous and safe to read aloud.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length of a session code in characters.
const Length = 8

// New returns a random session code.
func New() string {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		panic("failed to generate random bytes: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}

// Validate checks that an id is a well-formed session code.
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("session code must be exactly %d characters, got %d", Length, len(id))
	}
	for i, ch := range id {
		valid := false
		for _, a := range alphabet {
			if ch == a {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid character %c at position %d", ch, i)
		}
	}
	return nil
}
