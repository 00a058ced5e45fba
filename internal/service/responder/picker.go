package responder

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Picker chooses an index in [0, n).
type Picker interface {
	Pick(n int) int
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(n int) int

// Pick calls f.
func (f PickerFunc) Pick(n int) int { return f(n) }

type randomPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPicker returns a Picker seeded with seed. Equal seeds give equal sequences.
func NewRandomPicker(seed uint64) Picker {
	return &randomPicker{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func newDefaultPicker() Picker {
	return NewRandomPicker(uint64(time.Now().UnixNano()))
}

func (p *randomPicker) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.IntN(n)
}
