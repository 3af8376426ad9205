// Package proc defines the process control block and the FIFO queues that
// thread every blocking syscall through the scheduler. Queues are realized
// as slices rather than intrusive linked lists, keeping them small vectors
// indexed by PCB rather than pointer-chained nodes.
package proc

import (
	"github.com/rice-cs422/goyalnix/hal"
	"github.com/rice-cs422/goyalnix/pmm"
	"github.com/rice-cs422/goyalnix/vmm"
)

// BlockKind names the mutually exclusive reasons a PCB can be blocked for.
type BlockKind int

const (
	BlockNone BlockKind = iota
	BlockDelay
	BlockWait
	BlockPipeRead
	BlockTerminalRead
	BlockTerminalWritePending
	BlockTerminalWriteInFlight
	BlockLockWait
	BlockCvarWait
)

// BlockState records the reason a PCB is blocked, plus whatever id or
// countdown that reason needs.
type BlockState struct {
	Kind    BlockKind
	Ticks   int // BlockDelay: ticks remaining
	PipeID  int // BlockPipeRead
	TTY     int // BlockTerminalRead / BlockTerminalWrite*
	ObjID   int // BlockLockWait / BlockCvarWait
}

// Status codes recorded on exit.
const (
	StatusOK = 0
)

// PCB is the per-process kernel record
type PCB struct {
	PID    int
	Status int

	UserCtx hal.UserContext

	PageTable *vmm.UserPageTable

	KernelStackFrames [2]pmm.Frame

	LastUserDataPage  int
	LastUserStackPage int
	Brk               int

	Parent   *PCB
	Children []*PCB

	Block     BlockState
	HeldLock  int // 0 means holds no lock; lock ids are positive even ints.
}

// IsBlocked reports whether the PCB currently has a blocking reason set.
func (p *PCB) IsBlocked() bool {
	return p.Block.Kind != BlockNone
}

// ClearBlock resets the PCB to runnable-but-not-yet-scheduled state.
func (p *PCB) ClearBlock() {
	p.Block = BlockState{}
}

// RemoveChild deletes child from p's child list by identity.
func (p *PCB) RemoveChild(child *PCB) {
	for i, c := range p.Children {
		if c == child {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			return
		}
	}
}
