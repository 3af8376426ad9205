package kernel

import (
	"bytes"

	"github.com/rice-cs422/goyalnix/kernelerr"
	"github.com/rice-cs422/goyalnix/proc"
)

// terminal holds the line buffer and transmit queue for one simulated tty.
// At most one write is ever in flight; anything else that wants to write
// queues up as pending until the busy device frees.
type terminal struct {
	lineBuf []byte
	busy    bool
	pending []*pendingWrite
}

type pendingWrite struct {
	pcb *proc.PCB
	buf []byte
}

func newTerminal() *terminal {
	return &terminal{}
}

// TtyRead copies a completed input line to the caller, blocking until one
// is available. It delivers at most one line per call: if the buffer holds
// a newline, only the bytes up to and including it are copied, so a second
// call is needed to drain a second buffered line.
func (k *Kernel) TtyRead(self *proc.PCB, tty int, buf []byte) (int, error) {
	k.acquireCPU()
	if tty < 0 || tty >= len(k.terminals) {
		k.releaseCPU()
		return 0, kernelerr.ErrInvalidArgument
	}

	for len(k.terminals[tty].lineBuf) == 0 {
		k.blockAndSwitch(self, proc.BlockState{Kind: proc.BlockTerminalRead, TTY: tty}, &k.blocked)
	}

	term := k.terminals[tty]
	lineEnd := len(term.lineBuf)
	if idx := bytes.IndexByte(term.lineBuf, '\n'); idx >= 0 {
		lineEnd = idx + 1
	}
	n := copy(buf, term.lineBuf[:lineEnd])
	term.lineBuf = term.lineBuf[n:]

	k.releaseCPU()
	return n, nil
}

// TtyWrite queues buf for transmission on tty, chunking it into pieces of at
// most cfg.TerminalMaxLine bytes and blocking once per chunk until the
// device has finished sending it, per the busy-bit / pending-queue
// discipline above.
func (k *Kernel) TtyWrite(self *proc.PCB, tty int, buf []byte) (int, error) {
	k.acquireCPU()
	if tty < 0 || tty >= len(k.terminals) {
		k.releaseCPU()
		return 0, kernelerr.ErrInvalidArgument
	}
	term := k.terminals[tty]

	chunkSize := k.cfg.TerminalMaxLine
	sent := 0
	for sent < len(buf) {
		end := sent + chunkSize
		if end > len(buf) {
			end = len(buf)
		}
		chunk := buf[sent:end]

		if term.busy {
			term.pending = append(term.pending, &pendingWrite{pcb: self, buf: chunk})
			k.blockAndSwitch(self, proc.BlockState{Kind: proc.BlockTerminalWritePending, TTY: tty}, &k.blocked)
		} else {
			term.busy = true
			k.machine.TtyTransmit(tty, chunk)
			k.blockAndSwitch(self, proc.BlockState{Kind: proc.BlockTerminalWriteInFlight, TTY: tty}, &k.blocked)
		}

		sent = end
	}

	k.releaseCPU()
	return sent, nil
}

// ReceiveInterrupt is the receive-trap handler: it drains newly available
// input from the machine into the terminal's line buffer and wakes the
// single blocked reader waiting on it, if any.
func (k *Kernel) ReceiveInterrupt(tty int) {
	k.acquireCPU()
	defer k.releaseCPU()

	term := k.terminals[tty]
	buf := make([]byte, k.cfg.TerminalMaxLine)
	if n := k.machine.TtyReceive(tty, buf); n > 0 {
		term.lineBuf = append(term.lineBuf, buf[:n]...)
	}

	for _, p := range k.blocked.Snapshot() {
		if p.Block.Kind == proc.BlockTerminalRead && p.Block.TTY == tty {
			k.moveToReady(p, &k.blocked)
			return
		}
	}
}

// TransmitInterrupt is the transmit-trap handler: it wakes the writer whose
// transmission just completed and, if another writer is queued, promotes
// the oldest pending one to in-flight.
func (k *Kernel) TransmitInterrupt(tty int) {
	k.acquireCPU()
	defer k.releaseCPU()

	term := k.terminals[tty]
	for _, p := range k.blocked.Snapshot() {
		if p.Block.Kind == proc.BlockTerminalWriteInFlight && p.Block.TTY == tty {
			k.moveToReady(p, &k.blocked)
			break
		}
	}
	term.busy = false

	if len(term.pending) > 0 {
		next := term.pending[0]
		term.pending = term.pending[1:]
		term.busy = true
		next.pcb.Block.Kind = proc.BlockTerminalWriteInFlight
		k.machine.TtyTransmit(tty, next.buf)
	}
}
