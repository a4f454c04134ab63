// Package parid generates TIM paragraph identifiers: eleven characters from
// [0-9a-zA-Z] followed by a Luhn-style check character.
package parid

import (
	"crypto/sha1"
	"math/rand/v2"
	"strings"
)

const (
	charset = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	bodyLen = 11
)

// Random returns a fresh random paragraph id.
func Random() string {
	var b strings.Builder
	b.Grow(bodyLen + 1)
	for range bodyLen {
		b.WriteByte(charset[rand.IntN(len(charset))])
	}
	return withCheck(b.String())
}

// Hashed returns a paragraph id derived from seed. The same seed always
// yields the same id. An empty seed yields a random id.
func Hashed(seed string) string {
	if seed == "" {
		return Random()
	}
	sum := sha1.Sum([]byte(seed))
	body := make([]byte, bodyLen)
	for i := range body {
		body[i] = charset[int(sum[i])%len(charset)]
	}
	return withCheck(string(body))
}

// Valid reports whether id has the expected length, alphabet and check
// character.
func Valid(id string) bool {
	if len(id) != bodyLen+1 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(charset, id[i]) < 0 {
			return false
		}
	}
	return withCheck(id[:bodyLen]) == id
}

func withCheck(body string) string {
	return body + string(checkChar(body))
}

func checkChar(body string) byte {
	digit := luhn(body + charset[:1])
	if digit == 0 {
		return charset[0]
	}
	return charset[len(charset)-digit]
}

func luhn(id string) int {
	acc := 0
	for i := len(id) - 1; i >= 0; i-- {
		value := strings.IndexByte(charset, id[i])
		if i%2 == 0 {
			value *= 2
		}
		acc += value
	}
	return acc % len(charset)
}
