package htlc

import "sync"

// Faults queues errors that a simulated client returns, in order, before it
// performs the named operation.
type Faults struct {
	mu     sync.Mutex
	queued map[string][]error
}

func (f *Faults) Inject(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queued == nil {
		f.queued = make(map[string][]error)
	}
	f.queued[op] = append(f.queued[op], errs...)
}

// Next pops the next queued error for op, or returns nil.
func (f *Faults) Next(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.queued[op]
	if len(q) == 0 {
		return nil
	}
	f.queued[op] = q[1:]
	return q[0]
}
