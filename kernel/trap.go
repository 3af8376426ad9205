package kernel

import (
	"github.com/rice-cs422/goyalnix/hal"
	"github.com/rice-cs422/goyalnix/kernelerr"
	"github.com/rice-cs422/goyalnix/klog"
	"github.com/rice-cs422/goyalnix/proc"
	"github.com/rice-cs422/goyalnix/vmm"
)

// Syscall trap codes, carried in UserContext.Regs[0] on entry to TrapKernel.
const (
	TrapFork = iota
	TrapExec
	TrapExit
	TrapWait
	TrapGetPid
	TrapBrk
	TrapDelay
	TrapTtyRead
	TrapTtyWrite
	TrapPipeInit
	TrapPipeRead
	TrapPipeWrite
	TrapLockInit
	TrapAcquire
	TrapRelease
	TrapCvarInit
	TrapCvarSignal
	TrapCvarBroadcast
	TrapCvarWait
	TrapReclaim
)

// FaultKind names a synchronous fault trap, as opposed to a voluntary
// syscall trap.
type FaultKind int

// The exit status recorded for each fault kind (faultStatus below) is an
// arbitrary negative sentinel; nothing outside this module inspects them,
// so no attempt is made to reproduce the original ABI's specific values.
const (
	FaultIllegalInstruction FaultKind = iota
	FaultMemory
	FaultMath
)

var faultStatus = map[FaultKind]int{
	FaultIllegalInstruction: -2,
	FaultMemory:             -3,
	FaultMath:               -4,
}

var faultError = map[FaultKind]kernelerr.KernelError{
	FaultIllegalInstruction: kernelerr.ErrIllegalInstruction,
	FaultMemory:             kernelerr.ErrMemoryFault,
	FaultMath:               kernelerr.ErrMathFault,
}

// FaultTrap responds to an illegal instruction, memory, or math fault in the
// running process. page is the faulting virtual page and is only meaningful
// for FaultMemory; a memory fault that lands just below the user stack and
// above the break grows the stack instead of killing the process, matching
// the guard-page discipline a real MMU's fault handler implements. Every
// other fault kind, and a memory fault that does not qualify for growth,
// forces the process to exit.
func (k *Kernel) FaultTrap(kind FaultKind, page int) {
	k.acquireCPU()

	if kind == FaultMemory && k.growStack(k.running, page) {
		k.releaseCPU()
		return
	}

	klog.Error("process killed by fault", "pid", k.running.PID, "reason", faultError[kind].Error())
	k.exit(k.running, faultStatus[kind])
}

// growStack extends self's stack down to cover page, if page qualifies: it
// must lie within the user region, within two pages of the current stack
// boundary, and above the break. Qualifying pages between the fault and the
// old boundary are all mapped fresh, and the boundary is advanced to page.
func (k *Kernel) growStack(self *proc.PCB, page int) bool {
	if page < 0 || page >= self.PageTable.NumPages() {
		return false
	}
	if page <= self.Brk || page >= self.LastUserStackPage {
		return false
	}
	if self.LastUserStackPage-page > 2 {
		return false
	}

	var mapped []int
	for p := page; p < self.LastUserStackPage; p++ {
		if _, err := self.PageTable.MapPage(p, vmm.ProtRead|vmm.ProtWrite); err != nil {
			for _, mp := range mapped {
				self.PageTable.UnmapPage(mp)
			}
			return false
		}
		mapped = append(mapped, p)
	}

	self.LastUserStackPage = page
	self.PageTable.FlushTLB()
	return true
}

// pageBytes returns a slice over the physical bytes backing user page
// within self's address space, letting the trap dispatcher marshal syscall
// buffer arguments without a hardware-style temporary mapping - the
// simplification documented in DESIGN.md.
func (k *Kernel) pageBytes(self *proc.PCB, page int) []byte {
	entry := self.PageTable.Entry(page)
	if !entry.Valid {
		return nil
	}
	return k.alloc.Bytes(entry.Frame)
}

// TrapKernel is the syscall dispatch entry point: copy the incoming
// UserContext into the running PCB, dispatch on the trap
// code in register 0, then copy the running PCB's context back out with its
// return value in register 0. Blocking syscalls reinstall the caller as the
// running PCB before they return, so that is the caller's own context; Exit
// has no context to resume and returns nil.
//
// Buffer-taking syscalls encode their arguments as (page, offset, length)
// register triplets identifying a range within the caller's own user pages,
// standing in for the pointer-plus-length convention a real ABI would use.
func (k *Kernel) TrapKernel(uctxt *hal.UserContext) *hal.UserContext {
	self := k.running
	self.UserCtx = *uctxt
	regs := &self.UserCtx.Regs

	switch int(regs[0]) {
	case TrapExit:
		k.Exit(self, int(int64(regs[1])))
		return nil

	case TrapFork:
		pid, err := k.Fork(self)
		regs = &self.UserCtx.Regs
		regs[0] = encodeResult(int64(pid), err)

	case TrapExec:
		page, offset, length := int(regs[1]), int(regs[2]), int(regs[3])
		buf := k.pageBytes(self, page)
		if buf == nil || offset+length > len(buf) {
			self.UserCtx.Regs[0] = encodeResult(0, kernelerr.ErrInvalidArgument)
			break
		}
		path := string(buf[offset : offset+length])
		err := k.Exec(self, path, nil)
		if err != nil {
			self.UserCtx.Regs[0] = encodeResult(0, err)
		}
		return &self.UserCtx

	case TrapWait:
		pid, status, err := k.Wait(self)
		self.UserCtx.Regs[0] = encodeResult(int64(pid), err)
		self.UserCtx.Regs[1] = uint64(int64(status))

	case TrapGetPid:
		self.UserCtx.Regs[0] = uint64(k.GetPid(self))

	case TrapBrk:
		err := k.Brk(self, int(regs[1]))
		self.UserCtx.Regs[0] = encodeResult(0, err)

	case TrapDelay:
		err := k.Delay(self, int(int64(regs[1])))
		self.UserCtx.Regs[0] = encodeResult(0, err)

	case TrapTtyRead:
		tty, page, offset, length := int(regs[1]), int(regs[2]), int(regs[3]), int(regs[4])
		buf := k.pageBytes(self, page)
		if buf == nil || offset+length > len(buf) {
			self.UserCtx.Regs[0] = encodeResult(0, kernelerr.ErrInvalidArgument)
			break
		}
		n, err := k.TtyRead(self, tty, buf[offset:offset+length])
		self.UserCtx.Regs[0] = encodeResult(int64(n), err)

	case TrapTtyWrite:
		tty, page, offset, length := int(regs[1]), int(regs[2]), int(regs[3]), int(regs[4])
		buf := k.pageBytes(self, page)
		if buf == nil || offset+length > len(buf) {
			self.UserCtx.Regs[0] = encodeResult(0, kernelerr.ErrInvalidArgument)
			break
		}
		n, err := k.TtyWrite(self, tty, buf[offset:offset+length])
		self.UserCtx.Regs[0] = encodeResult(int64(n), err)

	case TrapPipeInit:
		self.UserCtx.Regs[0] = uint64(k.PipeInit(self))

	case TrapPipeRead:
		id, page, offset, length := int(int64(regs[1])), int(regs[2]), int(regs[3]), int(regs[4])
		buf := k.pageBytes(self, page)
		if buf == nil || offset+length > len(buf) {
			self.UserCtx.Regs[0] = encodeResult(0, kernelerr.ErrInvalidArgument)
			break
		}
		n, err := k.PipeRead(self, id, buf[offset:offset+length])
		self.UserCtx.Regs[0] = encodeResult(int64(n), err)

	case TrapPipeWrite:
		id, page, offset, length := int(int64(regs[1])), int(regs[2]), int(regs[3]), int(regs[4])
		buf := k.pageBytes(self, page)
		if buf == nil || offset+length > len(buf) {
			self.UserCtx.Regs[0] = encodeResult(0, kernelerr.ErrInvalidArgument)
			break
		}
		n, err := k.PipeWrite(self, id, buf[offset:offset+length])
		self.UserCtx.Regs[0] = encodeResult(int64(n), err)

	case TrapLockInit:
		self.UserCtx.Regs[0] = uint64(k.LockInit(self))

	case TrapAcquire:
		err := k.Acquire(self, int(int64(regs[1])))
		self.UserCtx.Regs[0] = encodeResult(0, err)

	case TrapRelease:
		err := k.Release(self, int(int64(regs[1])))
		self.UserCtx.Regs[0] = encodeResult(0, err)

	case TrapCvarInit:
		self.UserCtx.Regs[0] = uint64(k.CvarInit(self))

	case TrapCvarSignal:
		err := k.CvarSignal(self, int(int64(regs[1])))
		self.UserCtx.Regs[0] = encodeResult(0, err)

	case TrapCvarBroadcast:
		err := k.CvarBroadcast(self, int(int64(regs[1])))
		self.UserCtx.Regs[0] = encodeResult(0, err)

	case TrapCvarWait:
		err := k.CvarWait(self, int(int64(regs[1])), int(int64(regs[2])))
		self.UserCtx.Regs[0] = encodeResult(0, err)

	case TrapReclaim:
		err := k.Reclaim(self, int(int64(regs[1])))
		self.UserCtx.Regs[0] = encodeResult(0, err)

	default:
		self.UserCtx.Regs[0] = encodeResult(0, kernelerr.ErrInvalidArgument)
	}

	return &k.running.UserCtx
}

// encodeResult packs a non-negative result or, on error, a negative
// sentinel into the single register-0 return-value slot.
func encodeResult(v int64, err error) uint64 {
	if err != nil {
		neg := int64(-1)
		return uint64(neg)
	}
	return uint64(v)
}
