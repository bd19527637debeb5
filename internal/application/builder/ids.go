package builder

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator generates event identifiers.
type IDGenerator interface {
	// GenerateID returns the next identifier, or "" when events carry none.
	GenerateID() string
}

// SequentialIDs derives name-based (SHA-1) UUIDs from a namespace and a
// counter, so two runs with the same namespace produce the same identifiers.
type SequentialIDs struct {
	space uuid.UUID
	next  atomic.Uint64
}

// NewSequentialIDs creates a generator scoped to namespace, typically the sensor IRI.
func NewSequentialIDs(namespace string) *SequentialIDs {
	return &SequentialIDs{space: uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace))}
}

// GenerateID implements IDGenerator.
func (g *SequentialIDs) GenerateID() string {
	n := g.next.Add(1)
	return uuid.NewSHA1(g.space, []byte(strconv.FormatUint(n, 10))).URN()
}

// RandomIDs generates version 4 UUIDs.
type RandomIDs struct{}

// GenerateID implements IDGenerator.
func (RandomIDs) GenerateID() string {
	return uuid.New().URN()
}

// NoIDs leaves events anonymous.
type NoIDs struct{}

// GenerateID implements IDGenerator.
func (NoIDs) GenerateID() string { return "" }
