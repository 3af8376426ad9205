package kernel

import (
	"github.com/rice-cs422/goyalnix/kernelerr"
	"github.com/rice-cs422/goyalnix/proc"
)

// PipeInit allocates a fresh pipe and returns its id. Pipe ids are
// negative and decreasing.
func (k *Kernel) PipeInit(self *proc.PCB) int {
	k.acquireCPU()
	defer k.releaseCPU()

	id := k.nextPipeID
	k.nextPipeID--
	k.pipes[id] = newPipe(id, k.cfg.PipeCapacity)
	return id
}

// PipeRead copies up to len(buf) available bytes out of the named pipe's
// ring buffer, blocking until at least one byte is available. Blocked
// readers are woken by Tick, not by PipeWrite.
func (k *Kernel) PipeRead(self *proc.PCB, id int, buf []byte) (int, error) {
	k.acquireCPU()

	if k.classifyID(id) != objPipe {
		k.releaseCPU()
		return 0, kernelerr.ErrWrongKind
	}
	pi, ok := k.pipes[id]
	if !ok {
		k.releaseCPU()
		return 0, kernelerr.ErrUnknownObject
	}

	for pi.available() == 0 {
		k.blockAndSwitch(self, proc.BlockState{Kind: proc.BlockPipeRead, PipeID: id}, &k.blocked)
		pi, ok = k.pipes[id]
		if !ok {
			k.releaseCPU()
			return 0, kernelerr.ErrUnknownObject
		}
	}

	n := pi.available()
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		buf[i] = pi.buf[(pi.readIdx+i)%len(pi.buf)]
	}
	pi.readIdx += n

	k.releaseCPU()
	return n, nil
}

// PipeWrite appends data to the named pipe's ring buffer. There is no
// blocking writer path: a write that would fill the ring completely fails
// immediately with ErrPipeFull rather than partially writing, so at most
// capacity-1 bytes are ever buffered.
func (k *Kernel) PipeWrite(self *proc.PCB, id int, data []byte) (int, error) {
	k.acquireCPU()
	defer k.releaseCPU()

	if k.classifyID(id) != objPipe {
		return 0, kernelerr.ErrWrongKind
	}
	pi, ok := k.pipes[id]
	if !ok {
		return 0, kernelerr.ErrUnknownObject
	}

	free := pi.capacity() - pi.available()
	if len(data) >= free {
		return 0, kernelerr.ErrPipeFull
	}
	for i, b := range data {
		pi.buf[(pi.writeIdx+i)%len(pi.buf)] = b
	}
	pi.writeIdx += len(data)

	return len(data), nil
}
