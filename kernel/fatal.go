package kernel

import "github.com/rice-cs422/goyalnix/klog"

// abortFn is a variable so that a test can replace it and observe Panic's
// halt path without actually calling through to a Machine.
var abortFn = func(k *Kernel, msg string) { k.machine.Abort(msg) }

// Panic logs an unrecoverable kernel inconsistency and halts the machine.
// Unlike a per-process fault (see FaultTrap), Panic is for invariant
// violations the kernel itself cannot attribute to any one process - a
// corrupted queue, a page table entry that should never have gone invalid,
// an object id collision. Calls to Panic never return.
func (k *Kernel) Panic(reason string) {
	klog.Error("kernel panic: system halted", "reason", reason)
	abortFn(k, reason)
}
