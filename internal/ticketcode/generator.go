// Package ticketcode produces ticket code strings for events. Codes have
// the shape PREFIX-TIMEBASE-RANDOM where the prefix is derived from the
// event name, the timebase encodes the generation instant in base 36 and
// the random part is a base-36 draw. Construction alone does not make a
// code globally unique; the unique index on tickets.code is what enforces
// that, and callers retry the single colliding slot on insert conflicts.
package ticketcode

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// fallbackPrefix is used when the event label contains no usable initials.
const fallbackPrefix = "EVT"

// randDigits is the minimum number of base-36 symbols in the random part.
const randDigits = 8

var (
	ErrBadCount         = errors.New("ticketcode: count must be at least 1")
	ErrBadExistingCount = errors.New("ticketcode: existing count must not be negative")
)

// Generator builds batches of ticket codes. The zero value is not usable;
// construct one with NewGenerator. The time and random sources are fields
// so tests can pin them.
type Generator struct {
	now  func() time.Time
	draw func() uint64
}

// NewGenerator returns a Generator backed by the wall clock and the
// default random source.
func NewGenerator() *Generator {
	return &Generator{now: time.Now, draw: rand.Uint64}
}

// NewGeneratorWithSources returns a Generator with explicit time and
// random sources. Intended for tests.
func NewGeneratorWithSources(now func() time.Time, draw func() uint64) *Generator {
	return &Generator{now: now, draw: draw}
}

// Prefix derives the code prefix from an event label: the uppercase first
// letters of its whitespace-separated words, truncated to three characters.
// Labels that yield no initials fall back to a generic prefix so the code
// shape stays stable.
func Prefix(eventLabel string) string {
	// Initials are runes, not bytes; counting bytes would slice
	// multi-byte initials mid-sequence.
	var initials []rune
	for _, word := range strings.Fields(eventLabel) {
		initials = append(initials, []rune(word)[0])
		if len(initials) == 3 {
			break
		}
	}
	if len(initials) == 0 {
		return fallbackPrefix
	}
	return strings.ToUpper(string(initials))
}

// Generate returns count distinct code strings for the given event label.
// existingCount is the number of codes already generated for the event in
// earlier calls; it only diversifies the random draw across calls and is
// no substitute for the storage-level uniqueness constraint. Codes within
// a single batch are guaranteed distinct.
func (g *Generator) Generate(eventLabel string, count, existingCount int) ([]string, error) {
	if count < 1 {
		return nil, ErrBadCount
	}
	if existingCount < 0 {
		return nil, ErrBadExistingCount
	}

	prefix := Prefix(eventLabel)
	timebase := strings.ToUpper(strconv.FormatInt(g.now().UTC().UnixMilli(), 36))

	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; {
		code := prefix + "-" + timebase + "-" + g.randomPart(existingCount+i)
		if _, dup := seen[code]; dup {
			// Same-batch duplicate from the random source; redraw this slot.
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
		i++
	}
	return codes, nil
}

// randomPart encodes a random draw as at least randDigits base-36 symbols.
// The slot index offsets the draw so repeated calls in the same
// millisecond still diverge.
func (g *Generator) randomPart(slot int) string {
	v := g.draw() + uint64(slot)
	s := strings.ToUpper(strconv.FormatUint(v, 36))
	for len(s) < randDigits {
		s = "0" + s
	}
	return s
}
