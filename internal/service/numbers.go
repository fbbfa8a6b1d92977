package service

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Number prefixes.
const (
	dispatchPrefix = "DISP"
	shipmentPrefix = "SHIP"
)

// maxShipmentsPerDispatch is the number of distinct three digit random parts.
const maxShipmentsPerDispatch = 1000

// NumberGenerator issues human readable dispatch and shipment numbers: a
// prefix, the last six digits of the millisecond clock and three random
// digits. Uniqueness is best effort; the database keeps the numbers unique.
type NumberGenerator struct {
	now  func() time.Time
	rand func(n int) int
}

// NewNumberGenerator creates a NumberGenerator on the wall clock.
func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{now: time.Now, rand: rand.IntN}
}

// Dispatch returns a new dispatch number.
func (g *NumberGenerator) Dispatch() string {
	return g.next(dispatchPrefix)
}

// Shipments returns n shipment numbers for one dispatch. They share a clock
// reading, so the random digits start at a random offset and step by one;
// the numbers are distinct for n up to maxShipmentsPerDispatch.
func (g *NumberGenerator) Shipments(n int) []string {
	clock := g.clock()
	offset := g.rand(maxShipmentsPerDispatch)
	numbers := make([]string, n)
	for i := range numbers {
		numbers[i] = format(shipmentPrefix, clock, (offset+i)%maxShipmentsPerDispatch)
	}
	return numbers
}

func (g *NumberGenerator) next(prefix string) string {
	return format(prefix, g.clock(), g.rand(maxShipmentsPerDispatch))
}

func (g *NumberGenerator) clock() int64 {
	return g.now().UnixMilli() % 1_000_000
}

func format(prefix string, clock int64, random int) string {
	return fmt.Sprintf("%s%06d%03d", prefix, clock, random)
}
