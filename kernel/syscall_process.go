package kernel

import (
	"github.com/rice-cs422/goyalnix/hal"
	"github.com/rice-cs422/goyalnix/kernelerr"
	"github.com/rice-cs422/goyalnix/klog"
	"github.com/rice-cs422/goyalnix/pmm"
	"github.com/rice-cs422/goyalnix/proc"
	"github.com/rice-cs422/goyalnix/vmm"
)

// GetPid returns the calling process's own id. It touches no shared state,
// so it does not need the CPU baton.
func (k *Kernel) GetPid(self *proc.PCB) int {
	return self.PID
}

// Fork duplicates self into a new child PCB with a private, byte-for-byte
// copy of self's address space. If any frame allocation fails partway
// through the copy, every frame acquired for this attempt is freed and no
// child is created.
func (k *Kernel) Fork(self *proc.PCB) (int, error) {
	k.acquireCPU()

	pt := vmm.NewUserPageTable(k.alloc, k.machine, self.PageTable.NumPages())
	var allocated []pmm.Frame
	rollback := func() {
		for _, f := range allocated {
			k.alloc.Free(f)
		}
	}

	for page := 0; page < self.PageTable.NumPages(); page++ {
		src := self.PageTable.Entry(page)
		if !src.Valid {
			continue
		}
		f, err := k.alloc.Alloc()
		if err != nil {
			rollback()
			k.releaseCPU()
			return 0, err
		}
		allocated = append(allocated, f)
		copy(k.alloc.Bytes(f), k.alloc.Bytes(src.Frame))
		pt.MapFrame(page, f, src.Prot)
	}

	f0, err := k.alloc.Alloc()
	if err != nil {
		rollback()
		k.releaseCPU()
		return 0, err
	}
	allocated = append(allocated, f0)

	f1, err := k.alloc.Alloc()
	if err != nil {
		rollback()
		k.releaseCPU()
		return 0, err
	}
	allocated = append(allocated, f1)

	child := &proc.PCB{
		PID:               k.machine.AllocPID(),
		PageTable:         pt,
		KernelStackFrames: [2]pmm.Frame{f0, f1},
		LastUserDataPage:  self.LastUserDataPage,
		LastUserStackPage: self.LastUserStackPage,
		Brk:               self.Brk,
		Parent:            self,
	}
	child.UserCtx = self.UserCtx
	child.UserCtx.Regs[0] = 0 // fork returns 0 to the child

	self.Children = append(self.Children, child)
	k.ready.PushHead(child)

	k.releaseCPU()
	return child.PID, nil
}

// Exec replaces self's address space with the named program image in
// place. LoadProgram failing before any mapping is touched leaves self's
// original address space intact. A failure partway through mapping the new
// image is a documented limitation: self's old address space is torn down
// regardless, and self is left running on top of whatever of the new image
// got mapped before the failure - the caller sees the domain error, but the
// process that made the call does not get its old address space back.
func (k *Kernel) Exec(self *proc.PCB, path string, argv []string) error {
	k.acquireCPU()

	image, err := k.machine.LoadProgram(path, argv)
	if err != nil {
		k.releaseCPU()
		return err
	}

	newPT := vmm.NewUserPageTable(k.alloc, k.machine, self.PageTable.NumPages())
	var mapErr error

	for p := 0; p < image.TextPages && mapErr == nil; p++ {
		_, mapErr = newPT.MapPage(p, vmm.ProtRead|vmm.ProtExec)
	}
	for p := image.TextPages; mapErr == nil && p < image.TextPages+image.DataPages; p++ {
		_, mapErr = newPT.MapPage(p, vmm.ProtRead|vmm.ProtWrite)
	}
	stackPage := newPT.NumPages() - 1
	if mapErr == nil {
		_, mapErr = newPT.MapPage(stackPage, vmm.ProtRead|vmm.ProtWrite)
	}

	self.PageTable.Destroy()
	self.PageTable = newPT
	if mapErr != nil {
		k.activeUserTable = self.PageTable
		self.PageTable.FlushTLB()
		k.releaseCPU()
		return mapErr
	}
	self.LastUserDataPage = image.TextPages + image.DataPages - 1
	self.LastUserStackPage = stackPage
	self.Brk = image.Brk
	self.UserCtx = hal.UserContext{PC: image.EntryPC, SP: image.InitialSP}

	k.activeUserTable = self.PageTable
	self.PageTable.FlushTLB()

	k.releaseCPU()
	return nil
}

// Exit tears self down and hands the CPU to the next ready process. It
// returns to its Go caller with nothing for self to resume (TrapKernel
// hands back a nil context), matching the fact that an exited process
// never resumes.
func (k *Kernel) Exit(self *proc.PCB, status int) {
	k.acquireCPU()
	k.exit(self, status)
}

// exit assumes the CPU is already held. The PID is retired here,
// unconditionally, since it is a machine-wide resource independent of when
// (or whether) a parent gets around to reaping the PCB. Children are
// reparented to no one: Wait only ever needs to find a defunct child through
// its own Children slice, and an orphan with no parent to reap it is dropped
// immediately instead of leaking into defunct forever - including a child
// that is already defunct at the moment self exits, which is otherwise never
// looked at again since it is reachable from neither a live Children slice
// nor a future Wait call.
//
// If self is the boot init process, there is no one left to reap anything,
// so exit halts the machine instead of tearing down and dispatching.
func (k *Kernel) exit(self *proc.PCB, status int) {
	if self == k.init {
		klog.Info("init exited, halting", "status", status)
		k.machine.Abort("init process exited")
		return
	}

	self.Status = status
	self.PageTable.Destroy()
	k.alloc.Free(self.KernelStackFrames[0])
	k.alloc.Free(self.KernelStackFrames[1])
	k.machine.RetirePID(self.PID)

	for _, child := range self.Children {
		child.Parent = nil
		// A child already defunct has no parent left to Wait it in; drop it
		// now rather than leaving it on k.defunct forever.
		if k.defunct.Contains(child) {
			k.defunct.Remove(child)
		}
	}

	if self.Parent != nil {
		k.defunct.PushHead(self)
	}

	successor := k.findReadyPCB()
	k.ready.Remove(successor)
	k.dispatchTo(successor)
}

// Wait blocks until some child of self is defunct, reaps it, and returns
// its pid and exit status. A process with no children at all fails
// immediately rather than blocking forever.
func (k *Kernel) Wait(self *proc.PCB) (int, int, error) {
	k.acquireCPU()

	for {
		if len(self.Children) == 0 {
			k.releaseCPU()
			return 0, 0, kernelerr.ErrNoChildren
		}
		for _, child := range self.Children {
			if k.defunct.Contains(child) {
				k.defunct.Remove(child)
				self.RemoveChild(child)
				pid, status := child.PID, child.Status
				k.releaseCPU()
				return pid, status, nil
			}
		}
		k.blockAndSwitch(self, proc.BlockState{Kind: proc.BlockWait}, &k.blocked)
	}
}

// Delay blocks self for the given number of clock ticks. A negative count is
// rejected; zero returns immediately.
func (k *Kernel) Delay(self *proc.PCB, ticks int) error {
	k.acquireCPU()
	if ticks < 0 {
		k.releaseCPU()
		return kernelerr.ErrInvalidArgument
	}
	if ticks == 0 {
		k.releaseCPU()
		return nil
	}
	k.blockAndSwitch(self, proc.BlockState{Kind: proc.BlockDelay, Ticks: ticks}, &k.blocked)
	k.releaseCPU()
	return nil
}

// Brk grows or shrinks self's user heap to end at newBrk (a page number).
// Growth is rejected if it would collide with the stack guard page;
// shrinkage is rejected below the fixed end of the data segment. A
// partial mapping failure while growing is rolled back.
func (k *Kernel) Brk(self *proc.PCB, newBrk int) error {
	k.acquireCPU()
	defer k.releaseCPU()

	floor := self.LastUserDataPage + 1
	if newBrk < floor || newBrk >= self.LastUserStackPage {
		return kernelerr.ErrBadBrk
	}
	if newBrk == self.Brk {
		return nil
	}

	if newBrk > self.Brk {
		var mapped []int
		for page := self.Brk; page < newBrk; page++ {
			if _, err := self.PageTable.MapPage(page, vmm.ProtRead|vmm.ProtWrite); err != nil {
				for _, p := range mapped {
					self.PageTable.UnmapPage(p)
				}
				return err
			}
			mapped = append(mapped, page)
		}
	} else {
		for page := newBrk; page < self.Brk; page++ {
			self.PageTable.UnmapPage(page)
		}
	}

	self.Brk = newBrk
	self.PageTable.FlushTLB()
	return nil
}
