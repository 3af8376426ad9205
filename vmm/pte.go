// Package vmm implements the two-region virtual memory model: a single
// fixed kernel-region page table shared by all processes, and one
// user-region page table per process. Adapted from a multi-level x86 page
// directory to the flat, single-level page table the simulated machine
// exposes.
package vmm

import "github.com/rice-cs422/goyalnix/pmm"

// Prot is a page protection bitmask.
type Prot uint8

const (
	ProtRead Prot = 1 << iota
	ProtWrite
	ProtExec
)

// PTE is a single page table entry.
type PTE struct {
	Valid bool
	Prot  Prot
	Frame pmm.Frame
}
