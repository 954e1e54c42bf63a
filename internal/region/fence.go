package region

import "unsafe"

// atomicPointer32 returns a pointer to the naturally-aligned 32-bit word at
// byte offset off within buf. Callers only ever take this pointer at the
// fixed header offsets declared in layout.go, all of which are multiples of
// 4, so the alignment precondition sync/atomic requires always holds.
func atomicPointer32(buf []byte, off int) unsafe.Pointer {
	return unsafe.Pointer(&buf[off])
}

// atomicPointer64 is the 64-bit equivalent, used for the timings block
// whose offsets are all multiples of 8 (layout.go).
func atomicPointer64(buf []byte, off int) unsafe.Pointer {
	return unsafe.Pointer(&buf[off])
}

// Fence is the single explicit barrier kind the protocol uses (spec §4.1:
// "one fence kind: full barrier"). It is named and called at every P2/P4/O2
// step in internal/protocol so that the protocol code reads the same shape
// as spec §4.1, but its body is deliberately empty on every platform this
// module targets: the ordering guarantee a publishing goroutine needs for
// its own prior plain-slice writes to become visible before a later atomic
// store is already provided by the sync/atomic operations on the state
// words themselves, per the Go memory model — there is no separate Go-level
// opcode to insert. Cross-domain (host/guest) visibility through the
// ivshmem-plain PCI BAR is a property of the coherent fabric QEMU presents,
// which no userspace instruction from either side can strengthen (spec
// §4.1, §9; see DESIGN.md's Open Question resolution #4).
func Fence() {}
