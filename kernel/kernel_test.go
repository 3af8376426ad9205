package kernel

import (
	"testing"

	"github.com/rice-cs422/goyalnix/bootcfg"
	"github.com/rice-cs422/goyalnix/hal"
	"github.com/rice-cs422/goyalnix/kernelerr"
)

// fakeMachine is a bare-bones hal.Machine for exercising kernel logic
// without any real hardware, following the mockable-collaborator pattern
// this repo uses for its own hal-facing tests.
type fakeMachine struct {
	nextPID   int
	ttyRX     []byte
	retired   []int
	transmits [][]byte
}

func (m *fakeMachine) FlushTLB(hal.Region) {}
func (m *fakeMachine) EnableVM()           {}
func (m *fakeMachine) TtyTransmit(tty int, buf []byte) {
	cp := append([]byte(nil), buf...)
	m.transmits = append(m.transmits, cp)
}
func (m *fakeMachine) TtyReceive(tty int, buf []byte) int {
	n := copy(buf, m.ttyRX)
	m.ttyRX = nil
	return n
}
func (m *fakeMachine) AllocPID() int {
	m.nextPID++
	return m.nextPID
}
func (m *fakeMachine) RetirePID(pid int) { m.retired = append(m.retired, pid) }
func (m *fakeMachine) LoadProgram(path string, argv []string) (*hal.ProgramImage, error) {
	return &hal.ProgramImage{EntryPC: 0x1000, InitialSP: 0, TextPages: 1, DataPages: 1, Brk: 2}, nil
}
func (m *fakeMachine) Abort(msg string) {}

func testConfig() bootcfg.Config {
	return bootcfg.Config{
		PhysicalMemoryBytes: 64 * 64,
		PageSize:            64,

		KernelRegionPages:      16,
		KernelTextPages:        2,
		KernelInitialHeapPages: 2,
		UserRegionPages:        16,

		NumTerminals:    1,
		TerminalMaxLine: 32,
		PipeCapacity:    8,
	}
}

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	return New(testConfig(), &fakeMachine{})
}

func TestForkTickDispatchExitWait(t *testing.T) {
	k := newTestKernel(t)

	parent, err := k.newProcess(nil, "parent", nil)
	if err != nil {
		t.Fatal(err)
	}
	k.running = parent
	k.activeUserTable = parent.PageTable

	childPID, err := k.Fork(parent)
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	if len(parent.Children) != 1 || parent.Children[0].PID != childPID {
		t.Fatalf("expected parent to record the new child")
	}
	child := parent.Children[0]
	if !k.ready.Contains(child) {
		t.Fatal("expected freshly forked child on the ready queue")
	}
	if child.UserCtx.Regs[0] != 0 {
		t.Fatalf("expected fork to zero the child's return register, got %d", child.UserCtx.Regs[0])
	}

	// Preempt the parent; the child is the only ready process so it must be
	// picked next.
	k.Tick()
	if k.running != child {
		t.Fatalf("expected child to be dispatched, got pid %d", k.running.PID)
	}

	k.Exit(child, 42)
	if k.running != parent {
		t.Fatalf("expected parent to be dispatched after child exit, got pid %d", k.running.PID)
	}
	if !k.defunct.Contains(child) {
		t.Fatal("expected exited child on the defunct queue")
	}

	pid, status, err := k.Wait(parent)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if pid != childPID || status != 42 {
		t.Fatalf("expected (%d, 42), got (%d, %d)", childPID, pid, status)
	}
	if len(parent.Children) != 0 {
		t.Fatal("expected reaped child removed from parent's children")
	}
}

func TestWaitWithNoChildrenFailsImmediately(t *testing.T) {
	k := newTestKernel(t)
	solo, err := k.newProcess(nil, "solo", nil)
	if err != nil {
		t.Fatal(err)
	}
	k.running = solo

	if _, _, err := k.Wait(solo); err == nil {
		t.Fatal("expected an error waiting with no children")
	}
}

func TestBrkGrowShrinkAndGuard(t *testing.T) {
	k := newTestKernel(t)
	p, err := k.newProcess(nil, "p", nil)
	if err != nil {
		t.Fatal(err)
	}
	k.running = p

	floor := p.LastUserDataPage + 1
	if err := k.Brk(p, floor+2); err != nil {
		t.Fatalf("grow: %v", err)
	}
	if p.Brk != floor+2 {
		t.Fatalf("expected brk %d, got %d", floor+2, p.Brk)
	}

	if err := k.Brk(p, floor); err != nil {
		t.Fatalf("shrink: %v", err)
	}
	if p.PageTable.Entry(floor + 1).Valid {
		t.Fatal("expected shrunk page to be unmapped")
	}

	if err := k.Brk(p, p.LastUserStackPage-1); err != nil {
		t.Fatalf("expected growth up to the page just below the stack to succeed, got %v", err)
	}
	if err := k.Brk(p, p.LastUserStackPage); err == nil {
		t.Fatal("expected growth into the stack guard to be rejected")
	}
	if err := k.Brk(p, floor-1); err == nil {
		t.Fatal("expected shrink below the data segment to be rejected")
	}
}

func TestDelayRejectsNegativeTicks(t *testing.T) {
	k := newTestKernel(t)
	p, _ := k.newProcess(nil, "p", nil)
	k.running = p

	if err := k.Delay(p, -1); err != kernelerr.ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestDelayZeroReturnsImmediately(t *testing.T) {
	k := newTestKernel(t)
	p, _ := k.newProcess(nil, "p", nil)
	k.running = p

	if err := k.Delay(p, 0); err != nil {
		t.Fatalf("expected zero delay to succeed immediately, got %v", err)
	}
}

func TestExitRetiresPIDEvenWithLiveParent(t *testing.T) {
	k := newTestKernel(t)
	parent, _ := k.newProcess(nil, "parent", nil)
	k.running = parent
	k.activeUserTable = parent.PageTable

	childPID, err := k.Fork(parent)
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	child := parent.Children[0]

	k.Tick() // dispatch the child so Exit is called with it as the running process
	if k.running != child {
		t.Fatalf("expected child to be dispatched, got pid %d", k.running.PID)
	}

	m := k.machine.(*fakeMachine)
	retiredBefore := m.retired
	k.Exit(child, 0)

	if len(m.retired) != len(retiredBefore)+1 || m.retired[len(m.retired)-1] != childPID {
		t.Fatalf("expected exit to retire pid %d immediately, retired=%v", childPID, m.retired)
	}
	if !k.defunct.Contains(child) {
		t.Fatal("expected the exited child to still be queued on defunct for its parent to reap")
	}
}
