package enginectl

import "sync"

// defaultRingCapacity bounds how many recent engine output lines are kept
// in memory for diagnostics.
const defaultRingCapacity = 200

// outputRing is a thread-safe circular buffer holding the most recent
// lines the supervised process wrote. The full output goes to the rotating
// log files; the ring exists so a launch failure can surface a useful tail
// without rereading files.
type outputRing struct {
	mu    sync.Mutex
	lines []string
	head  int
	count int
}

func newOutputRing(capacity int) *outputRing {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}
	return &outputRing{lines: make([]string, capacity)}
}

func (r *outputRing) Add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.head] = line
	r.head = (r.head + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
}

// Tail returns the buffered lines, oldest first.
func (r *outputRing) Tail() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, r.count)
	start := r.head - r.count
	if start < 0 {
		start += len(r.lines)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.lines[(start+i)%len(r.lines)])
	}
	return out
}
