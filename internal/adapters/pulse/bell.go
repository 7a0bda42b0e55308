package pulse

import (
	"io"
	"sync"
)

// Bell rings the terminal bell on every pulse. Haptics are ignored.
type Bell struct {
	mu sync.Mutex
	w  io.Writer
}

// NewBell writes BEL characters to w.
func NewBell(w io.Writer) *Bell {
	return &Bell{w: w}
}

func (b *Bell) EmitPulse() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = b.w.Write([]byte{'\a'})
}

func (b *Bell) EmitHaptic() {}
