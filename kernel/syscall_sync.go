package kernel

import (
	"github.com/rice-cs422/goyalnix/kernelerr"
	"github.com/rice-cs422/goyalnix/proc"
)

// LockInit allocates a fresh, initially-free lock and returns its id. Lock
// ids are positive and even.
func (k *Kernel) LockInit(self *proc.PCB) int {
	k.acquireCPU()
	defer k.releaseCPU()

	id := k.nextLockID
	k.nextLockID += 2
	k.locks[id] = newLock(id)
	return id
}

// CvarInit allocates a fresh condition variable and returns its id. Cvar
// ids are positive and odd.
func (k *Kernel) CvarInit(self *proc.PCB) int {
	k.acquireCPU()
	defer k.releaseCPU()

	id := k.nextCvarID
	k.nextCvarID += 2
	k.cvars[id] = newCvar(id)
	return id
}

// Acquire blocks until the named lock is free, then takes it.
func (k *Kernel) Acquire(self *proc.PCB, id int) error {
	k.acquireCPU()

	if k.classifyID(id) != objLock {
		k.releaseCPU()
		return kernelerr.ErrWrongKind
	}
	lk, ok := k.locks[id]
	if !ok {
		k.releaseCPU()
		return kernelerr.ErrUnknownObject
	}

	for lk.held {
		k.blockAndSwitch(self, proc.BlockState{Kind: proc.BlockLockWait, ObjID: id}, &lk.waitList)
		lk, ok = k.locks[id]
		if !ok {
			k.releaseCPU()
			return kernelerr.ErrUnknownObject
		}
	}

	lk.held = true
	lk.owner = self
	self.HeldLock = id

	k.releaseCPU()
	return nil
}

// Release frees the named lock, which the caller must own, and moves the
// oldest waiter (if any) straight to ready. The waiter re-takes the lock
// itself once dispatched, by looping back through Acquire's wait condition.
func (k *Kernel) Release(self *proc.PCB, id int) error {
	k.acquireCPU()
	defer k.releaseCPU()

	if k.classifyID(id) != objLock {
		return kernelerr.ErrWrongKind
	}
	lk, ok := k.locks[id]
	if !ok {
		return kernelerr.ErrUnknownObject
	}
	if lk.owner != self {
		return kernelerr.ErrNotOwner
	}

	lk.held = false
	lk.owner = nil
	self.HeldLock = 0

	if waiter := lk.waitList.PeekTail(); waiter != nil {
		k.moveToReady(waiter, &lk.waitList)
	}
	return nil
}

// CvarWait atomically releases lockID, blocks self on cvarID's wait list,
// and reacquires lockID before returning. self must own lockID.
func (k *Kernel) CvarWait(self *proc.PCB, cvarID, lockID int) error {
	k.acquireCPU()

	if k.classifyID(cvarID) != objCvar || k.classifyID(lockID) != objLock {
		k.releaseCPU()
		return kernelerr.ErrWrongKind
	}
	cv, ok := k.cvars[cvarID]
	if !ok {
		k.releaseCPU()
		return kernelerr.ErrUnknownObject
	}
	lk, ok := k.locks[lockID]
	if !ok {
		k.releaseCPU()
		return kernelerr.ErrUnknownObject
	}
	if lk.owner != self {
		k.releaseCPU()
		return kernelerr.ErrCvarNotOwner
	}

	lk.held = false
	lk.owner = nil
	self.HeldLock = 0

	k.blockAndSwitch(self, proc.BlockState{Kind: proc.BlockCvarWait, ObjID: cvarID}, &cv.waitList)

	lk = k.locks[lockID]
	for lk.held {
		k.blockAndSwitch(self, proc.BlockState{Kind: proc.BlockLockWait, ObjID: lockID}, &lk.waitList)
		lk = k.locks[lockID]
	}
	lk.held = true
	lk.owner = self
	self.HeldLock = lockID

	k.releaseCPU()
	return nil
}

// CvarSignal wakes the oldest PCB waiting on the named condition variable,
// if any.
func (k *Kernel) CvarSignal(self *proc.PCB, id int) error {
	k.acquireCPU()
	defer k.releaseCPU()

	if k.classifyID(id) != objCvar {
		return kernelerr.ErrWrongKind
	}
	cv, ok := k.cvars[id]
	if !ok {
		return kernelerr.ErrUnknownObject
	}
	if waiter := cv.waitList.PeekTail(); waiter != nil {
		k.moveToReady(waiter, &cv.waitList)
	}
	return nil
}

// CvarBroadcast wakes every PCB waiting on the named condition variable.
func (k *Kernel) CvarBroadcast(self *proc.PCB, id int) error {
	k.acquireCPU()
	defer k.releaseCPU()

	if k.classifyID(id) != objCvar {
		return kernelerr.ErrWrongKind
	}
	cv, ok := k.cvars[id]
	if !ok {
		return kernelerr.ErrUnknownObject
	}
	for _, waiter := range cv.waitList.Snapshot() {
		k.moveToReady(waiter, &cv.waitList)
	}
	return nil
}

// Reclaim destroys a pipe, lock, or condition variable by id. A pipe is
// refused while a reader is blocked on it; a lock only while the caller
// holds it and nobody waits on it; a cvar only while nobody waits on it.
func (k *Kernel) Reclaim(self *proc.PCB, id int) error {
	k.acquireCPU()
	defer k.releaseCPU()

	switch k.classifyID(id) {
	case objPipe:
		if _, ok := k.pipes[id]; !ok {
			return kernelerr.ErrUnknownObject
		}
		for _, p := range k.blocked.Snapshot() {
			if p.Block.Kind == proc.BlockPipeRead && p.Block.PipeID == id {
				return kernelerr.ErrObjectBusy
			}
		}
		delete(k.pipes, id)
		return nil
	case objLock:
		lk, ok := k.locks[id]
		if !ok {
			return kernelerr.ErrUnknownObject
		}
		if lk.owner != self {
			return kernelerr.ErrNotOwner
		}
		if lk.waitList.Len() > 0 {
			return kernelerr.ErrObjectBusy
		}
		self.HeldLock = 0
		delete(k.locks, id)
		return nil
	case objCvar:
		cv, ok := k.cvars[id]
		if !ok {
			return kernelerr.ErrUnknownObject
		}
		if cv.waitList.Len() > 0 {
			return kernelerr.ErrObjectBusy
		}
		delete(k.cvars, id)
		return nil
	default:
		return kernelerr.ErrUnknownObject
	}
}
