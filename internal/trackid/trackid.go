// Package trackid generates short public tracking codes.
package trackid

import (
	"crypto/rand"
	"io"

	"github.com/pkg/errors"
)

const (
	alphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	DefaultLength = 10
)

type Generator struct {
	length int
	src    io.Reader
}

func New(length int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	return &Generator{length: length, src: rand.Reader}
}

func newWithSource(length int, src io.Reader) *Generator {
	g := New(length)
	g.src = src
	return g
}

// Generate returns a random base62 code. Bytes >= 248 are rejected so that
// every symbol is equally likely (248 = 4*62).
func (g *Generator) Generate() (string, error) {
	out := make([]byte, 0, g.length)
	buf := make([]byte, g.length*2)
	for len(out) < g.length {
		if _, err := io.ReadFull(g.src, buf); err != nil {
			return "", errors.Wrap(err, "read random bytes")
		}
		for _, b := range buf {
			if b >= 248 {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == g.length {
				break
			}
		}
	}
	return string(out), nil
}

// Valid reports whether s looks like a tracking code: 4..32 base62 symbols.
// Client-supplied codes are not required to have the generated length.
func Valid(s string) bool {
	if len(s) < 4 || len(s) > 32 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			return false
		}
	}
	return true
}
