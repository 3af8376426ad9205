package vmm

import (
	"github.com/rice-cs422/goyalnix/hal"
	"github.com/rice-cs422/goyalnix/pmm"
)

// UserPageTable is a per-process mapping for the user region. Valid entries
// cover, in address order, user text, user data up through brk, a hole, and
// the user stack growing downward from the top.
type UserPageTable struct {
	alloc   *pmm.Allocator
	machine hal.Machine
	entries []PTE
}

// NewUserPageTable allocates an empty table with room for numPages user
// virtual pages.
func NewUserPageTable(alloc *pmm.Allocator, machine hal.Machine, numPages int) *UserPageTable {
	return &UserPageTable{
		alloc:   alloc,
		machine: machine,
		entries: make([]PTE, numPages),
	}
}

// NumPages returns the size of the user region in pages.
func (t *UserPageTable) NumPages() int {
	return len(t.entries)
}

// Entry returns the page table entry for the given user virtual page.
func (t *UserPageTable) Entry(page int) PTE {
	return t.entries[page]
}

// MapPage allocates a fresh frame and maps it at page with the given
// protection.
func (t *UserPageTable) MapPage(page int, prot Prot) (pmm.Frame, error) {
	f, err := t.alloc.Alloc()
	if err != nil {
		return pmm.InvalidFrame, err
	}
	t.entries[page] = PTE{Valid: true, Prot: prot, Frame: f}
	return f, nil
}

// MapFrame maps an already-allocated frame at page. Used by fork, which
// allocates the frame itself so it can copy the parent's page content into
// it before installing the mapping.
func (t *UserPageTable) MapFrame(page int, f pmm.Frame, prot Prot) {
	t.entries[page] = PTE{Valid: true, Prot: prot, Frame: f}
}

// UnmapPage invalidates page and frees its backing frame, if any.
func (t *UserPageTable) UnmapPage(page int) {
	if !t.entries[page].Valid {
		return
	}
	t.alloc.Free(t.entries[page].Frame)
	t.entries[page] = PTE{}
}

// FlushTLB asks the machine to invalidate cached region-1 translations.
func (t *UserPageTable) FlushTLB() {
	t.machine.FlushTLB(hal.Region1)
}

// Destroy invalidates every valid page and frees its frame. Called when a
// process exits.
func (t *UserPageTable) Destroy() {
	for p := range t.entries {
		t.UnmapPage(p)
	}
}
