// Package scanner provides the task runner framework: runner selection
// by (source type, scan type), the shared interrupt protocol, and the
// manager that drives a scan job's tasks to completion.
package scanner

import (
	"sync"
	"sync/atomic"

	"github.com/hostscout/api/pkg/domain/shared"
)

// Signal is the value carried by a manager interrupt.
type Signal int32

// Interrupt signal values.
const (
	SignalNone Signal = iota
	SignalCancel
	SignalPause
	SignalAck
)

// String returns the string representation.
func (s Signal) String() string {
	switch s {
	case SignalCancel:
		return "cancel"
	case SignalPause:
		return "pause"
	case SignalAck:
		return "ack"
	default:
		return "none"
	}
}

// Interrupt is the shared, pollable flag between the manager and a
// running task. Runners poll it at suspension points; on observing
// cancel or pause they set it to ack and return the matching status.
type Interrupt struct {
	v atomic.Int32
}

// NewInterrupt creates an interrupt in the none state.
func NewInterrupt() *Interrupt {
	return &Interrupt{}
}

// Set stores a signal.
func (i *Interrupt) Set(s Signal) {
	i.v.Store(int32(s))
}

// Value returns the current signal.
func (i *Interrupt) Value() Signal {
	return Signal(i.v.Load())
}

// Observe polls the flag. When a cancel or pause is pending it is
// acknowledged (the flag moves to ack) and returned; otherwise
// SignalNone is returned.
func (i *Interrupt) Observe() Signal {
	for {
		cur := Signal(i.v.Load())
		if cur != SignalCancel && cur != SignalPause {
			return SignalNone
		}
		if i.v.CompareAndSwap(int32(cur), int32(SignalAck)) {
			return cur
		}
	}
}

// InterruptHub hands out the per-job interrupt flags shared between
// the manager running a job and the notifier that delivers pause and
// cancel requests from the API process.
type InterruptHub struct {
	mu    sync.Mutex
	flags map[shared.ID]*Interrupt
}

// NewInterruptHub creates an empty hub.
func NewInterruptHub() *InterruptHub {
	return &InterruptHub{flags: make(map[shared.ID]*Interrupt)}
}

// Get returns the interrupt flag for a job, creating it on first use.
func (h *InterruptHub) Get(jobID shared.ID) *Interrupt {
	h.mu.Lock()
	defer h.mu.Unlock()
	flag, ok := h.flags[jobID]
	if !ok {
		flag = &Interrupt{}
		h.flags[jobID] = flag
	}
	return flag
}

// Signal sets a signal on a job's flag if the job is tracked here.
// It reports whether the job was found.
func (h *InterruptHub) Signal(jobID shared.ID, sig Signal) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	flag, ok := h.flags[jobID]
	if !ok {
		return false
	}
	flag.Set(sig)
	return true
}

// Release drops a job's flag once the job has settled.
func (h *InterruptHub) Release(jobID shared.ID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.flags, jobID)
}
