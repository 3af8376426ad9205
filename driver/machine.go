// Package driver provides a hosted implementation of hal.Machine: a
// software stand-in for the hardware a real kernel would run on, backing
// terminal I/O with the host process's own stdio and synthesizing program
// images instead of parsing an executable format.
package driver

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/rice-cs422/goyalnix/bootcfg"
	"github.com/rice-cs422/goyalnix/hal"
)

// SimMachine answers every hal.Machine call without touching real page
// tables or interrupt hardware: FlushTLB and EnableVM are no-ops because
// nothing outside the kernel's own vmm package ever inspects a page table,
// and pid allocation is a simple free list.
type SimMachine struct {
	cfg     bootcfg.Config
	nextPID int
	freePID []int
	stdin   *bufio.Reader

	// doneMu guards txDone. A real machine raises the transmit-complete
	// trap asynchronously, off the CPU that issued the write; TtyTransmit
	// runs under the kernel's CPU baton, so it cannot call back into the
	// kernel itself without deadlocking on that same baton. Instead it
	// queues the completed tty here for the run loop to drain and deliver
	// as a trap once the writer has released the baton.
	doneMu sync.Mutex
	txDone []int
}

// NewSimMachine builds a machine sized to match cfg's user region, so
// synthesized program images always fit within it.
func NewSimMachine(cfg bootcfg.Config) *SimMachine {
	return &SimMachine{cfg: cfg, nextPID: 1, stdin: bufio.NewReader(os.Stdin)}
}

func (m *SimMachine) FlushTLB(hal.Region) {}
func (m *SimMachine) EnableVM()           {}

// TtyTransmit writes buf to the host's stdout, tagged by tty number, then
// records completion for the run loop to pick up via DrainTransmitDone.
func (m *SimMachine) TtyTransmit(tty int, buf []byte) {
	fmt.Fprintf(os.Stdout, "[tty%d] %s", tty, buf)
	m.doneMu.Lock()
	m.txDone = append(m.txDone, tty)
	m.doneMu.Unlock()
}

// DrainTransmitDone returns every tty whose transmit has completed since the
// last call and clears the queue. The run loop calls this once per tick and
// delivers a Kernel.TransmitInterrupt for each, outside of any syscall's held
// CPU baton.
func (m *SimMachine) DrainTransmitDone() []int {
	m.doneMu.Lock()
	defer m.doneMu.Unlock()
	if len(m.txDone) == 0 {
		return nil
	}
	done := m.txDone
	m.txDone = nil
	return done
}

// TtyReceive drains whatever input the host's stdin already has buffered,
// without blocking. Terminal 0 is the only terminal backed by the host
// console; higher terminal numbers never have input available.
func (m *SimMachine) TtyReceive(tty int, buf []byte) int {
	if tty != 0 || m.stdin.Buffered() == 0 {
		return 0
	}
	n, _ := m.stdin.Read(buf)
	return n
}

func (m *SimMachine) AllocPID() int {
	if n := len(m.freePID); n > 0 {
		pid := m.freePID[n-1]
		m.freePID = m.freePID[:n-1]
		return pid
	}
	pid := m.nextPID
	m.nextPID++
	return pid
}

func (m *SimMachine) RetirePID(pid int) {
	m.freePID = append(m.freePID, pid)
}

// LoadProgram synthesizes a fixed-shape program image regardless of path:
// one text page, one data page, and a break two pages in. There is no
// executable format to parse in this simulation, so every program gets the
// same layout; that is enough to exercise fork, exec, and brk end to end.
func (m *SimMachine) LoadProgram(path string, argv []string) (*hal.ProgramImage, error) {
	return &hal.ProgramImage{
		EntryPC:   0,
		InitialSP: uintptr((m.cfg.UserRegionPages)*m.cfg.PageSize - 1),
		TextPages: 1,
		DataPages: 1,
		Brk:       2,
	}, nil
}

// Abort reports the failure and terminates the host process, standing in
// for a hardware machine halt.
func (m *SimMachine) Abort(msg string) {
	fmt.Fprintf(os.Stderr, "yalnixd: fatal: %s\n", msg)
	os.Exit(1)
}
