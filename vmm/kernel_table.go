package vmm

import (
	"github.com/rice-cs422/goyalnix/hal"
	"github.com/rice-cs422/goyalnix/kernelerr"
	"github.com/rice-cs422/goyalnix/pmm"
)

// KernelPageTable is the single, fixed mapping for the kernel region: text
// pages, a data/heap region grown by SetBrk, and two kernel-stack slots
// whose backing frames are rewritten on every context switch (see
// RewriteStack below).
type KernelPageTable struct {
	alloc   *pmm.Allocator
	machine hal.Machine
	entries []PTE

	textPages       int
	heapEndPage     int
	origHeapEndPage int
	stackPage0      int
	stackPage1      int
	vmEnabled       bool
}

// NewKernelPageTable identity-maps [0, textPages) as read+execute and
// [textPages, textPages+initialHeapPages) as read+write, keeping the frame
// allocator in sync via MarkUsed. At this point in boot the machine has not
// yet turned on paging, so virtual page X and physical frame X are the
// same thing.
func NewKernelPageTable(alloc *pmm.Allocator, machine hal.Machine, totalPages, textPages, initialHeapPages int) *KernelPageTable {
	kpt := &KernelPageTable{
		alloc:      alloc,
		machine:    machine,
		entries:    make([]PTE, totalPages),
		textPages:  textPages,
		stackPage0: totalPages - 2,
		stackPage1: totalPages - 1,
	}

	for p := 0; p < textPages; p++ {
		f := pmm.Frame(p)
		alloc.MarkUsed(f)
		kpt.entries[p] = PTE{Valid: true, Prot: ProtRead | ProtExec, Frame: f}
	}

	for p := textPages; p < textPages+initialHeapPages; p++ {
		f := pmm.Frame(p)
		alloc.MarkUsed(f)
		kpt.entries[p] = PTE{Valid: true, Prot: ProtRead | ProtWrite, Frame: f}
	}

	kpt.heapEndPage = textPages + initialHeapPages
	kpt.origHeapEndPage = kpt.heapEndPage
	return kpt
}

// EnableVM flips the table into its post-boot mode and asks the machine to
// turn on paging. Called exactly once.
func (kpt *KernelPageTable) EnableVM() {
	kpt.vmEnabled = true
	kpt.machine.EnableVM()
}

// StackPages returns the two fixed kernel-stack page indices.
func (kpt *KernelPageTable) StackPages() (int, int) {
	return kpt.stackPage0, kpt.stackPage1
}

// HeapEndPage returns the page one past the current kernel break.
func (kpt *KernelPageTable) HeapEndPage() int {
	return kpt.heapEndPage
}

// Entry returns the page table entry for the given kernel virtual page.
func (kpt *KernelPageTable) Entry(page int) PTE {
	return kpt.entries[page]
}

// SetBrk grows or shrinks the kernel heap to end at newHeapEndPage
// (exclusive). Fails if that would shrink below the original boot break or
// grow into (or within one guard page of) the kernel stack.
func (kpt *KernelPageTable) SetBrk(newHeapEndPage int) error {
	if newHeapEndPage == kpt.heapEndPage {
		return nil
	}
	if newHeapEndPage < kpt.origHeapEndPage {
		return kernelerr.ErrBadBrk
	}
	if newHeapEndPage >= kpt.stackPage0-1 {
		return kernelerr.ErrBadBrk
	}

	if !kpt.vmEnabled {
		if newHeapEndPage < kpt.heapEndPage {
			return kernelerr.ErrBadBrk
		}
		for p := kpt.heapEndPage; p < newHeapEndPage; p++ {
			f := pmm.Frame(p)
			kpt.alloc.MarkUsed(f)
			kpt.entries[p] = PTE{Valid: true, Prot: ProtRead | ProtWrite, Frame: f}
		}
		kpt.heapEndPage = newHeapEndPage
		return nil
	}

	if newHeapEndPage > kpt.heapEndPage {
		grown := make([]int, 0, newHeapEndPage-kpt.heapEndPage)
		for p := kpt.heapEndPage; p < newHeapEndPage; p++ {
			f, err := kpt.alloc.Alloc()
			if err != nil {
				for _, gp := range grown {
					kpt.alloc.Free(kpt.entries[gp].Frame)
					kpt.entries[gp] = PTE{}
				}
				return err
			}
			kpt.entries[p] = PTE{Valid: true, Prot: ProtRead | ProtWrite, Frame: f}
			grown = append(grown, p)
		}
	} else {
		for p := newHeapEndPage; p < kpt.heapEndPage; p++ {
			kpt.alloc.Free(kpt.entries[p].Frame)
			kpt.entries[p] = PTE{}
		}
	}

	kpt.heapEndPage = newHeapEndPage
	kpt.machine.FlushTLB(hal.Region0)
	return nil
}

// RewriteStack points the two kernel-stack page table entries at frames and
// flushes the kernel TLB. Invoked on every dispatch, since the previous
// occupant of these two pages was some other PCB's kernel stack.
func (kpt *KernelPageTable) RewriteStack(frames [2]pmm.Frame) {
	kpt.entries[kpt.stackPage0] = PTE{Valid: true, Prot: ProtRead | ProtWrite, Frame: frames[0]}
	kpt.entries[kpt.stackPage1] = PTE{Valid: true, Prot: ProtRead | ProtWrite, Frame: frames[1]}
	kpt.machine.FlushTLB(hal.Region0)
}
