package trackid

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerate_LengthAndAlphabet(t *testing.T) {
	g := New(0)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id, err := g.Generate()
		require.NoError(t, err)
		require.Len(t, id, DefaultLength)
		require.True(t, Valid(id), id)
		seen[id] = struct{}{}
	}
	require.Len(t, seen, 1000)
}

func TestGenerate_SkipsBiasedBytes(t *testing.T) {
	// 0xFF отбрасывается, 0x00 -> '0', 0x3D (61) -> 'z'
	src := bytes.NewReader([]byte{0xFF, 0x00, 0xF8, 0x3D, 0x00, 0x00})
	g := newWithSource(2, src)
	id, err := g.Generate()
	require.NoError(t, err)
	require.Equal(t, "0z", id)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestGenerate_SourceError(t *testing.T) {
	_, err := newWithSource(8, failingReader{}).Generate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "read random bytes")
}

func TestValid(t *testing.T) {
	require.True(t, Valid("Ab12"))
	require.False(t, Valid("ab1"))
	require.False(t, Valid("abc-123"))
	require.False(t, Valid(""))
}
