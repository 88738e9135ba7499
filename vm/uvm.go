package vm

import (
	"sync"

	"vimix/defs"
)

// AddressSpace is a process's user address space: a page table plus
// its current size, protected by a mutex exactly as the teacher's
// Vm_t protects Vmregion/Pmap/P_pmap (vm/as.go). Cross-address-space
// copies (uvm_copy_in/out/str) walk this page table and reach into the
// allocator's direct page storage the way Userdmap8_inner reaches
// mem.Physmem.Dmap.
type AddressSpace struct {
	mu sync.Mutex
	PT *PageTable
	Sz uintptr
}

// NewAddressSpace wraps an already-built page table.
func NewAddressSpace(pt *PageTable) *AddressSpace {
	return &AddressSpace{PT: pt}
}

// Lock/Unlock expose the address-space lock to callers that must hold
// it across a sequence of page-table mutations (fork, exec, sbrk).
func (as *AddressSpace) Lock()   { as.mu.Lock() }
func (as *AddressSpace) Unlock() { as.mu.Unlock() }

// CopyOut copies src into the user address space starting at uva.
// Mirrors as.go's K2user: walk page-by-page, memcpy through the
// allocator's direct-mapped page bytes, and fail with EFAULT on the
// first unmapped or non-writable page touched.
func (as *AddressSpace) CopyOut(uva uintptr, src []byte) defs.Err_t {
	as.mu.Lock()
	defer as.mu.Unlock()
	for len(src) > 0 {
		base := uva &^ (PGSIZE - 1)
		off := uva - base
		pa, perm, ok := as.PT.Lookup(base)
		if !ok || perm&PTE_W == 0 {
			return -defs.EFAULT
		}
		page := as.PT.alloc.Page(pa)
		n := copy(page[off:], src)
		src = src[n:]
		uva += uintptr(n)
	}
	return 0
}

// CopyIn copies len(dst) bytes from the user address uva into dst.
// Mirrors as.go's User2k.
func (as *AddressSpace) CopyIn(uva uintptr, dst []byte) defs.Err_t {
	as.mu.Lock()
	defer as.mu.Unlock()
	for len(dst) > 0 {
		base := uva &^ (PGSIZE - 1)
		off := uva - base
		pa, _, ok := as.PT.Lookup(base)
		if !ok {
			return -defs.EFAULT
		}
		page := as.PT.alloc.Page(pa)
		n := copy(dst, page[off:])
		dst = dst[n:]
		uva += uintptr(n)
	}
	return 0
}

// CopyInString copies a NUL-terminated string from user space, up to
// lenmax bytes including the NUL (ENAMETOOLONG otherwise), mirroring
// as.go's Userstr.
func (as *AddressSpace) CopyInString(uva uintptr, lenmax int) (string, defs.Err_t) {
	as.mu.Lock()
	defer as.mu.Unlock()
	var s []byte
	for {
		base := uva &^ (PGSIZE - 1)
		off := uva - base
		pa, _, ok := as.PT.Lookup(base)
		if !ok {
			return "", -defs.EFAULT
		}
		page := as.PT.alloc.Page(pa)
		chunk := page[off:]
		for i, c := range chunk {
			if c == 0 {
				if len(s)+i >= lenmax {
					return "", -defs.ENAMETOOLONG
				}
				s = append(s, chunk[:i]...)
				return string(s), 0
			}
		}
		s = append(s, chunk...)
		uva += uintptr(len(chunk))
		if len(s) >= lenmax {
			return "", -defs.ENAMETOOLONG
		}
	}
}

// Grow extends the address space to newsz, allocating fresh zeroed,
// user-writable pages (spec.md's uvm_alloc).
func (as *AddressSpace) Grow(newsz uintptr) defs.Err_t {
	as.mu.Lock()
	defer as.mu.Unlock()
	sz, err := as.PT.Alloc(as.Sz, newsz, PTE_R|PTE_W)
	as.Sz = sz
	return err
}

// Shrink reduces the address space to newsz, freeing pages above it.
func (as *AddressSpace) Shrink(newsz uintptr) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.Sz = as.PT.Dealloc(as.Sz, newsz)
}

// Fork clones as into a fresh address space sharing nothing, per
// spec.md's uvm_copy / the fork testable property that parent and
// child see identical memory until either writes.
func (as *AddressSpace) Fork(dst *AddressSpace) defs.Err_t {
	as.mu.Lock()
	defer as.mu.Unlock()
	if err := as.PT.Copy(dst.PT, as.Sz); err != 0 {
		return err
	}
	dst.Sz = as.Sz
	return 0
}

// Free releases all resources held by the address space.
func (as *AddressSpace) Free() {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.PT.Free(as.Sz)
}
