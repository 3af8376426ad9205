// Package pmm implements the kernel's physical frame allocator: a
// process-wide bitmap over physical frames, allocated first-fit and freed by
// index. Simplified to a single flat bitmap since this kernel manages one
// contiguous simulated memory, not several multiboot-reported regions.
package pmm

import "math"

// Frame describes a physical memory page index.
type Frame uint32

// InvalidFrame is returned by Alloc when no frame is available.
const InvalidFrame = Frame(math.MaxUint32)

// IsValid reports whether f names a real frame.
func (f Frame) IsValid() bool {
	return f != InvalidFrame
}
