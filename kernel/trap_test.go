package kernel

import (
	"testing"

	"github.com/rice-cs422/goyalnix/hal"
)

func TestFaultTrapGrowsStackWithinGuardRange(t *testing.T) {
	k := newTestKernel(t)
	p, _ := k.newProcess(nil, "p", nil)
	k.running = p
	k.activeUserTable = p.PageTable

	oldStackPage := p.LastUserStackPage
	faultPage := oldStackPage - 1 // one page below the stack

	k.FaultTrap(FaultMemory, faultPage)

	if k.running != p {
		t.Fatalf("expected process to resume after a growable fault, running pid=%d", k.running.PID)
	}
	if p.LastUserStackPage != faultPage {
		t.Fatalf("expected stack boundary to advance to %d, got %d", faultPage, p.LastUserStackPage)
	}
	if !p.PageTable.Entry(faultPage).Valid {
		t.Fatal("expected the faulting page to be mapped")
	}
}

func TestFaultTrapKillsProcessBeyondGuardRange(t *testing.T) {
	k := newTestKernel(t)
	p, _ := k.newProcess(nil, "p", nil)
	k.running = p
	k.activeUserTable = p.PageTable

	faultPage := p.LastUserStackPage - 3 // three pages below the stack

	k.FaultTrap(FaultMemory, faultPage)

	if k.running == p {
		t.Fatal("expected the process to be killed rather than resumed")
	}
	if k.running != k.idle {
		t.Fatalf("expected idle to be scheduled with no other ready process, got pid %d", k.running.PID)
	}
}

func TestFaultTrapKillsOnIllegalInstruction(t *testing.T) {
	k := newTestKernel(t)
	p, _ := k.newProcess(nil, "p", nil)
	k.running = p
	k.activeUserTable = p.PageTable

	k.FaultTrap(FaultIllegalInstruction, 0)

	if k.running == p {
		t.Fatal("expected the process to be killed on an illegal instruction fault")
	}
}

func TestTrapKernelGetPidAndDelay(t *testing.T) {
	k := newTestKernel(t)
	p, _ := k.newProcess(nil, "p", nil)
	k.running = p
	k.activeUserTable = p.PageTable

	ctxt := hal.UserContext{Regs: [hal.NumGeneralRegs]uint64{TrapGetPid}}
	out := k.TrapKernel(&ctxt)
	if int(out.Regs[0]) != p.PID {
		t.Fatalf("expected getpid to return %d, got %d", p.PID, out.Regs[0])
	}

	negOne := int64(-1)
	ctxt = hal.UserContext{Regs: [hal.NumGeneralRegs]uint64{TrapDelay, uint64(negOne)}}
	out = k.TrapKernel(&ctxt)
	if int64(out.Regs[0]) >= 0 {
		t.Fatalf("expected negative delay to report an error, got %d", out.Regs[0])
	}
}

func TestTrapKernelForkReturnsChildPIDThenZero(t *testing.T) {
	k := newTestKernel(t)
	parent, _ := k.newProcess(nil, "parent", nil)
	k.running = parent
	k.activeUserTable = parent.PageTable

	ctxt := hal.UserContext{Regs: [hal.NumGeneralRegs]uint64{TrapFork}}
	out := k.TrapKernel(&ctxt)
	if int64(out.Regs[0]) <= 0 {
		t.Fatalf("expected fork to return a positive child pid to the parent, got %d", int64(out.Regs[0]))
	}
	childPID := int(out.Regs[0])

	child := parent.Children[0]
	if child.PID != childPID {
		t.Fatalf("expected child pid %d, got %d", childPID, child.PID)
	}
	if child.UserCtx.Regs[0] != 0 {
		t.Fatalf("expected the child's saved context to carry a zero return value, got %d", child.UserCtx.Regs[0])
	}
}

func TestTrapKernelPipeRoundTrip(t *testing.T) {
	k := newTestKernel(t)
	p, _ := k.newProcess(nil, "p", nil)
	k.running = p
	k.activeUserTable = p.PageTable

	initCtxt := hal.UserContext{Regs: [hal.NumGeneralRegs]uint64{TrapPipeInit}}
	out := k.TrapKernel(&initCtxt)
	pipeID := int64(out.Regs[0])
	if pipeID >= 0 {
		t.Fatalf("expected a negative pipe id, got %d", pipeID)
	}

	// Stage "hi" into the process's own data page (page 1) at offset 0, then
	// ask PipeWrite to read it from there via the (page, offset, length)
	// buffer-argument convention.
	data := k.pageBytes(p, 1)
	copy(data, []byte("hi"))

	writeCtxt := hal.UserContext{Regs: [hal.NumGeneralRegs]uint64{TrapPipeWrite, uint64(pipeID), 1, 0, 2}}
	out = k.TrapKernel(&writeCtxt)
	if int64(out.Regs[0]) != 2 {
		t.Fatalf("expected pipe write to report 2 bytes written, got %d", int64(out.Regs[0]))
	}

	readCtxt := hal.UserContext{Regs: [hal.NumGeneralRegs]uint64{TrapPipeRead, uint64(pipeID), 1, 4, 2}}
	out = k.TrapKernel(&readCtxt)
	if int64(out.Regs[0]) != 2 {
		t.Fatalf("expected pipe read to report 2 bytes read, got %d", int64(out.Regs[0]))
	}
	if got := string(data[4:6]); got != "hi" {
		t.Fatalf("expected \"hi\" read back into the destination page, got %q", got)
	}
}

func TestTrapKernelUnknownTrapCodeIsError(t *testing.T) {
	k := newTestKernel(t)
	p, _ := k.newProcess(nil, "p", nil)
	k.running = p
	k.activeUserTable = p.PageTable

	ctxt := hal.UserContext{Regs: [hal.NumGeneralRegs]uint64{255}}
	out := k.TrapKernel(&ctxt)
	if int64(out.Regs[0]) >= 0 {
		t.Fatalf("expected an unknown trap code to report an error, got %d", int64(out.Regs[0]))
	}
}
