package refresh

import "sync/atomic"

// Guard admits at most one holder at a time. It never blocks: a caller that
// loses the race simply does not run.
type Guard struct {
	busy atomic.Bool
}

// TryAcquire takes the guard if it is free and reports whether it did.
func (g *Guard) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release frees the guard. Only the holder may call it.
func (g *Guard) Release() {
	g.busy.Store(false)
}

// Busy reports whether the guard is currently held.
func (g *Guard) Busy() bool {
	return g.busy.Load()
}
