package kernel

import "github.com/rice-cs422/goyalnix/proc"

// acquireCPU and releaseCPU model the single-core cooperative scheduling
// invariant: k.cpu is a one-token baton, and holding it is what "currently
// executing kernel code" means. Every exported syscall method that touches
// shared kernel state acquires it on entry (GetPid, which touches none,
// does not).
func (k *Kernel) acquireCPU() {
	<-k.cpu
}

func (k *Kernel) releaseCPU() {
	k.cpu <- struct{}{}
}

// findReadyPCB returns the tail (oldest) entry of the ready queue, or idle
// if the ready queue is empty
func (k *Kernel) findReadyPCB() *proc.PCB {
	if p := k.ready.PeekTail(); p != nil {
		return p
	}
	return k.idle
}

// dispatchTo installs successor as the running process and hands it the CPU
// baton. If successor was parked mid-syscall (blockAndSwitch left it
// waiting on a channel), waking that channel resumes its suspended Go call
// exactly where it left off, which is this simulation's stand-in for a
// hardware kernel-context switch resuming a saved stack. If successor has
// never been parked - freshly forked, or idle - there is no suspended call
// of ours to resume, so the baton is simply freed for whichever process
// traps into the kernel next.
func (k *Kernel) dispatchTo(successor *proc.PCB) {
	k.kpt.RewriteStack(successor.KernelStackFrames)
	k.running = successor
	k.activeUserTable = successor.PageTable
	successor.PageTable.FlushTLB()

	if ch, ok := k.parked[successor.PID]; ok {
		delete(k.parked, successor.PID)
		close(ch)
		return
	}
	k.releaseCPU()
}

// blockAndSwitch records why self is blocking, enqueues it on waitQueue,
// hands the CPU to the next ready process, and suspends the calling
// goroutine until self is dispatched again. It returns once self holds the
// CPU again with its own address space reinstalled, ready to re-examine
// whatever condition it was waiting on.
func (k *Kernel) blockAndSwitch(self *proc.PCB, reason proc.BlockState, waitQueue *proc.Queue) {
	self.Block = reason
	waitQueue.PushHead(self)

	// myCh must be registered before the CPU is handed away: the instant
	// dispatchTo resumes successor, some other goroutine is running kernel
	// code and may try to dispatch self again. Publishing myCh first gives
	// that a channel to find; publishing it after would race the successor's
	// goroutine reading k.parked and could lose the wakeup entirely.
	myCh := make(chan struct{})
	k.parked[self.PID] = myCh

	successor := k.findReadyPCB()
	k.ready.Remove(successor)
	k.dispatchTo(successor)

	<-myCh

	k.running = self
	k.activeUserTable = self.PageTable
	self.PageTable.FlushTLB()
}

// wake clears p's block reason and moves it onto the ready queue. It does
// not remove p from wherever it was waiting; callers that pulled p off an
// explicit wait queue (rather than k.blocked) must do that themselves first.
func (k *Kernel) wake(p *proc.PCB) {
	p.ClearBlock()
	k.ready.PushHead(p)
}

// moveToReady removes p from a wait queue and makes it ready in one step.
func (k *Kernel) moveToReady(p *proc.PCB, from *proc.Queue) {
	from.Remove(p)
	k.wake(p)
}
