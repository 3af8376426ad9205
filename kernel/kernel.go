// Package kernel implements the stateful core of the microkernel: the
// scheduler, the trap dispatch table, every syscall, IPC, synchronization,
// and terminal I/O. Every piece of kernel state is a field of the single
// Kernel struct rather than a package-level global, and it is never
// protected by a sync.Mutex: the single-threaded kernel invariant is
// enforced instead by a one-token CPU baton (see dispatch.go) that models
// the fact that a single-core machine only ever executes one kernel call at
// a time.
package kernel

import (
	"github.com/rice-cs422/goyalnix/bootcfg"
	"github.com/rice-cs422/goyalnix/hal"
	"github.com/rice-cs422/goyalnix/klog"
	"github.com/rice-cs422/goyalnix/pmm"
	"github.com/rice-cs422/goyalnix/proc"
	"github.com/rice-cs422/goyalnix/vmm"
)

// Kernel bundles every piece of kernel-wide state.
type Kernel struct {
	machine hal.Machine
	alloc   *pmm.Allocator
	kpt     *vmm.KernelPageTable
	cfg     bootcfg.Config

	running         *proc.PCB
	idle            *proc.PCB
	init            *proc.PCB
	activeUserTable *vmm.UserPageTable

	ready   proc.Queue
	blocked proc.Queue
	defunct proc.Queue

	pipes      map[int]*pipe
	locks      map[int]*lock
	cvars      map[int]*cvar
	nextPipeID int
	nextLockID int
	nextCvarID int

	terminals []*terminal

	cpu    chan struct{}
	parked map[int]chan struct{}
}

// New builds a Kernel around the given boot configuration and machine, with
// the kernel region mapped along the pre-VM path and the idle PCB created,
// but does not yet create init or enable VM. Callers normally use Start instead; New is
// exposed for tests that want a bare kernel.
func New(cfg bootcfg.Config, machine hal.Machine) *Kernel {
	numFrames := int(cfg.PhysicalMemoryBytes) / cfg.PageSize
	alloc := pmm.NewAllocator(numFrames, cfg.PageSize)
	kpt := vmm.NewKernelPageTable(alloc, machine, cfg.KernelRegionPages, cfg.KernelTextPages, cfg.KernelInitialHeapPages)

	k := &Kernel{
		machine: machine,
		alloc:   alloc,
		kpt:     kpt,
		cfg:     cfg,

		pipes: make(map[int]*pipe),
		locks: make(map[int]*lock),
		cvars: make(map[int]*cvar),

		nextPipeID: -1,
		nextLockID: 2,
		nextCvarID: 1,

		cpu:    make(chan struct{}, 1),
		parked: make(map[int]chan struct{}),
	}
	k.cpu <- struct{}{}

	for i := 0; i < cfg.NumTerminals; i++ {
		k.terminals = append(k.terminals, newTerminal())
	}

	idleF0, _ := alloc.Alloc()
	idleF1, _ := alloc.Alloc()
	k.idle = &proc.PCB{
		PID:               machine.AllocPID(),
		PageTable:         vmm.NewUserPageTable(alloc, machine, cfg.UserRegionPages),
		KernelStackFrames: [2]pmm.Frame{idleF0, idleF1},
	}

	return k
}

// Start is the boot entry point. It builds a Kernel, loads the init
// program, enables virtual memory, and returns the UserContext the machine
// should resume into.
func Start(cfg bootcfg.Config, machine hal.Machine) (*Kernel, *hal.UserContext, error) {
	k := New(cfg, machine)

	init, err := k.newProcess(nil, cfg.InitProgram, cfg.InitArgv)
	if err != nil {
		return nil, nil, err
	}

	k.kpt.RewriteStack(init.KernelStackFrames)
	k.running = init
	k.init = init
	k.activeUserTable = init.PageTable
	k.kpt.EnableVM()

	klog.Info("kernel started", "initPID", init.PID)
	return k, &init.UserCtx, nil
}

// newProcess allocates a PCB, loads the named program image into a fresh
// user address space, and wires up parent/child bookkeeping. It does not
// enqueue the new PCB anywhere; the caller decides what becomes of it
// (Start makes it the running boot init process). Fork does not use it.
func (k *Kernel) newProcess(parent *proc.PCB, path string, argv []string) (*proc.PCB, error) {
	image, err := k.machine.LoadProgram(path, argv)
	if err != nil {
		return nil, err
	}

	pt := vmm.NewUserPageTable(k.alloc, k.machine, k.cfg.UserRegionPages)

	for p := 0; p < image.TextPages; p++ {
		if _, err := pt.MapPage(p, vmm.ProtRead|vmm.ProtExec); err != nil {
			pt.Destroy()
			return nil, err
		}
	}
	for p := image.TextPages; p < image.TextPages+image.DataPages; p++ {
		if _, err := pt.MapPage(p, vmm.ProtRead|vmm.ProtWrite); err != nil {
			pt.Destroy()
			return nil, err
		}
	}
	stackPage := pt.NumPages() - 1
	if _, err := pt.MapPage(stackPage, vmm.ProtRead|vmm.ProtWrite); err != nil {
		pt.Destroy()
		return nil, err
	}

	f0, err := k.alloc.Alloc()
	if err != nil {
		pt.Destroy()
		return nil, err
	}
	f1, err := k.alloc.Alloc()
	if err != nil {
		k.alloc.Free(f0)
		pt.Destroy()
		return nil, err
	}

	p := &proc.PCB{
		PID:               k.machine.AllocPID(),
		PageTable:         pt,
		KernelStackFrames: [2]pmm.Frame{f0, f1},
		LastUserDataPage:  image.TextPages + image.DataPages - 1,
		LastUserStackPage: stackPage,
		Brk:               image.Brk,
		Parent:            parent,
	}
	p.UserCtx.PC = image.EntryPC
	p.UserCtx.SP = image.InitialSP

	if parent != nil {
		parent.Children = append(parent.Children, p)
	}

	return p, nil
}
