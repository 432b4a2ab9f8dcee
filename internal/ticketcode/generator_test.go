package ticketcode

import (
	"math/rand/v2"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefix(t *testing.T) {
	cases := []struct {
		label string
		want  string
	}{
		{"Concierto de Rock 2024", "CDR"},
		{"Rock", "R"},
		{"rock fest", "RF"},
		{"  spaced   out   words  here ", "SOW"},
		{"", "EVT"},
		{"   ", "EVT"},
		{"Ópera Única Nocturna", "ÓÚN"},
		{"été à paris", "ÉÀP"},
	}
	for _, tc := range cases {
		got := Prefix(tc.label)
		assert.Equal(t, tc.want, got, "label %q", tc.label)
		assert.True(t, utf8.ValidString(got), "prefix for %q is not valid UTF-8", tc.label)
	}
}

func TestGenerateShape(t *testing.T) {
	now := func() time.Time { return time.UnixMilli(1700000000000).UTC() }
	draw := func() uint64 { return 12345678901234 }
	g := NewGeneratorWithSources(now, draw)

	codes, err := g.Generate("Rock Fest", 3, 0)
	require.NoError(t, err)
	require.Len(t, codes, 3)

	for _, code := range codes {
		parts := strings.Split(code, "-")
		require.Len(t, parts, 3, "code %q", code)
		assert.Equal(t, "RF", parts[0])
		assert.Equal(t, strings.ToUpper(code), code)
		assert.GreaterOrEqual(t, len(parts[2]), 8, "random part of %q", code)
	}
}

func TestGenerateInputValidation(t *testing.T) {
	g := NewGenerator()

	_, err := g.Generate("Rock", 0, 0)
	assert.ErrorIs(t, err, ErrBadCount)

	_, err = g.Generate("Rock", 1, -1)
	assert.ErrorIs(t, err, ErrBadExistingCount)
}

func TestGenerateBatchIsDistinct(t *testing.T) {
	// A deliberately colliding random source: the generator must still
	// return distinct codes within one batch by redrawing.
	// First two draws land on the same value once the slot offset is
	// added (100+0 and 99+1), forcing a redraw for the second slot.
	scripted := []uint64{100, 99}
	calls := 0
	draw := func() uint64 {
		if calls < len(scripted) {
			v := scripted[calls]
			calls++
			return v
		}
		return rand.Uint64()
	}
	g := NewGeneratorWithSources(time.Now, draw)

	codes, err := g.Generate("Rock", 10, 0)
	require.NoError(t, err)
	seen := map[string]struct{}{}
	for _, c := range codes {
		_, dup := seen[c]
		require.False(t, dup, "duplicate code %q in batch", c)
		seen[c] = struct{}{}
	}
}

func TestGenerateTenThousandUnique(t *testing.T) {
	g := NewGenerator()
	seen := make(map[string]struct{}, 10000)

	// Repeated batch calls for the same label, the way the generation
	// endpoint issues them in sub-batches.
	existing := 0
	for batch := 0; batch < 20; batch++ {
		codes, err := g.Generate("Gran Final", 500, existing)
		require.NoError(t, err)
		for _, c := range codes {
			seen[c] = struct{}{}
		}
		existing += len(codes)
	}
	assert.Len(t, seen, 10000)
}
