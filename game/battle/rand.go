package battle

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
	"time"
)

// Rand is the random source used by kit assignment, turn order and damage
// variance. *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// lockedRand serialises access to a *rand.Rand so one source can be shared
// by concurrent requests.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a concurrency-safe Rand seeded with seed.
func NewRand(seed int64) Rand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// NewSeed returns a seed from crypto/rand, falling back to the clock.
func NewSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
