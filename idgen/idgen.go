// Package idgen provides the identifier generators used to stamp time
// events.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/xid"
)

// Generator produces unique identifiers.
type Generator interface {
	Generate() string
}

// NewSequential returns a generator whose first emitted ID is "1". Two
// sequential generators driven by the same calls emit the same IDs, which
// makes them the choice for bit-identical replays.
func NewSequential() Generator {
	return &sequentialGenerator{}
}

// NewXID returns a generator that emits globally unique, sortable xids.
func NewXID() Generator {
	return xidGenerator{}
}

// NewUUID4 returns a generator that emits random version 4 UUIDs.
func NewUUID4() Generator {
	return uuid4Generator{}
}

// ByName returns the generator registered under name. Recognized names are
// "seq", "xid", and "uuid".
func ByName(name string) (Generator, bool) {
	switch name {
	case "seq", "sequential":
		return NewSequential(), true
	case "xid":
		return NewXID(), true
	case "uuid", "uuid4", "":
		return NewUUID4(), true
	default:
		return nil, false
	}
}

type sequentialGenerator struct {
	next uint64
}

func (g *sequentialGenerator) Generate() string {
	return strconv.FormatUint(atomic.AddUint64(&g.next, 1), 10)
}

type xidGenerator struct{}

func (xidGenerator) Generate() string {
	return xid.New().String()
}

type uuid4Generator struct{}

func (uuid4Generator) Generate() string {
	return uuid.NewString()
}
