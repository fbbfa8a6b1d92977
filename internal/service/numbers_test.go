package service

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNumbers(random int) *NumberGenerator {
	at := time.UnixMilli(1_740_816_123_456)
	return &NumberGenerator{
		now:  func() time.Time { return at },
		rand: func(int) int { return random },
	}
}

func TestNumberGenerator_Format(t *testing.T) {
	g := fixedNumbers(7)

	assert.Equal(t, "DISP123456007", g.Dispatch())
	assert.Equal(t, []string{"SHIP123456007"}, g.Shipments(1))

	live := NewNumberGenerator()
	assert.Regexp(t, regexp.MustCompile(`^DISP\d{9}$`), live.Dispatch())
}

func TestNumberGenerator_ShipmentsAreDistinct(t *testing.T) {
	g := fixedNumbers(998)

	got := g.Shipments(4)
	assert.Equal(t, []string{"SHIP123456998", "SHIP123456999", "SHIP123456000", "SHIP123456001"}, got)

	all := NewNumberGenerator().Shipments(maxShipmentsPerDispatch)
	seen := make(map[string]bool, len(all))
	for _, n := range all {
		require.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
}
