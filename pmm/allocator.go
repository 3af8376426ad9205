package pmm

import "github.com/rice-cs422/goyalnix/kernelerr"

// Allocator is a bitmap frame allocator backed by an arena of byte slices
// that stand in for the simulated machine's physical memory. Every live
// page-table entry (kernel or user) and every kernel stack frame holds
// exactly one reference into this arena.
type Allocator struct {
	pageSize int
	used     []bool
	arena    [][]byte
}

// NewAllocator creates an allocator managing numFrames frames of pageSize
// bytes each. All frames start free.
func NewAllocator(numFrames int, pageSize int) *Allocator {
	arena := make([][]byte, numFrames)
	for i := range arena {
		arena[i] = make([]byte, pageSize)
	}
	return &Allocator{
		pageSize: pageSize,
		used:     make([]bool, numFrames),
		arena:    arena,
	}
}

// NumFrames returns the total frame count managed by this allocator.
func (a *Allocator) NumFrames() int {
	return len(a.arena)
}

// NumFree returns the number of currently unallocated frames.
func (a *Allocator) NumFree() int {
	free := 0
	for _, u := range a.used {
		if !u {
			free++
		}
	}
	return free
}

// Alloc scans for the first clear bit, marks it used, and returns it.
func (a *Allocator) Alloc() (Frame, error) {
	for i, u := range a.used {
		if !u {
			a.used[i] = true
			return Frame(i), nil
		}
	}
	return InvalidFrame, kernelerr.ErrNoMemory
}

// MarkUsed forces a specific frame to be recorded as used. Used only by the
// pre-VM boot path, where page X is identity-mapped to frame X before the
// allocator has had a chance to observe the mapping through Alloc.
func (a *Allocator) MarkUsed(f Frame) {
	a.used[f] = true
}

// Free clears the frame's bit and zeroes its backing storage so that a
// future allocation never observes a previous tenant's data.
func (a *Allocator) Free(f Frame) {
	a.used[f] = false
	for i := range a.arena[f] {
		a.arena[f][i] = 0
	}
}

// Bytes returns the backing storage for frame f. Callers use this to
// memcpy page contents during fork and to reach user pages when the trap
// dispatcher marshals syscall buffer arguments.
func (a *Allocator) Bytes(f Frame) []byte {
	return a.arena[f]
}
