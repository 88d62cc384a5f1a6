// Package addr defines the two address spaces the debugger core reasons
// about: a byte offset inside a specific ELF image, and a byte address in
// the tracee's virtual memory. The two are never implicitly convertible,
// following the strong-alias-per-address-space discipline used throughout
// the retrieved corpus (see e.g. xyproto-vibe67's VirtualAddr/FileOffset
// pair) and demanded explicitly by the debugger's own design notes: mixing
// a file offset with a virtual address is exactly the class of bug this
// type separation exists to catch at compile time.
package addr

import "fmt"

// Image is the minimal view of an ELF image that address conversion needs:
// enough to look up the section containing a given file offset and to know
// the bias applied once the loader has actually mapped the file in.
type Image interface {
	// SectionForFileOffset returns the section containing the given file
	// offset, and false if no section covers it.
	SectionForFileOffset(off uint64) (lo, hi uint64, ok bool)
	// LoadBias returns the runtime offset between a file address and its
	// virtual address, or zero if the image has not been notified of a
	// load yet.
	LoadBias() uint64
}

// VirtAddr is a byte address in the tracee's address space.
type VirtAddr struct {
	Addr uint64
}

// IsNull reports whether v is the null address, the value returned by a
// conversion that could not resolve to a mapped location.
func (v VirtAddr) IsNull() bool { return v.Addr == 0 }

func (v VirtAddr) String() string { return fmt.Sprintf("0x%x", v.Addr) }

// Add returns v offset by n bytes, staying in the virtual address space.
func (v VirtAddr) Add(n int64) VirtAddr { return VirtAddr{Addr: uint64(int64(v.Addr) + n)} }

// ToFile converts v to a FileAddr within img, returning ok=false if v does
// not lie within img's loaded range (v predates img's load bias, or img has
// never been loaded).
func (v VirtAddr) ToFile(img Image) (FileAddr, bool) {
	bias := img.LoadBias()
	if v.Addr < bias {
		return FileAddr{}, false
	}
	fileOff := v.Addr - bias
	if _, _, ok := img.SectionForFileOffset(fileOff); !ok {
		return FileAddr{}, false
	}
	return FileAddr{Img: img, Off: fileOff}, true
}

// FileAddr is a byte offset within a specific ELF image, identified by the
// Img reference it was constructed against. Two FileAddrs are only
// meaningfully comparable when their Img fields refer to the same image.
type FileAddr struct {
	Img Image
	Off uint64
}

func (f FileAddr) String() string { return fmt.Sprintf("file+0x%x", f.Off) }

// ToVirt converts f into the tracee's address space using f.Img's load
// bias. Returns the null VirtAddr if f does not lie inside a loaded
// section, per spec: "otherwise the conversion yields a null virtual
// address".
func (f FileAddr) ToVirt() VirtAddr {
	if f.Img == nil {
		return VirtAddr{}
	}
	if _, _, ok := f.Img.SectionForFileOffset(f.Off); !ok {
		return VirtAddr{}
	}
	return VirtAddr{Addr: f.Off + f.Img.LoadBias()}
}

// SameImage reports whether f and other were constructed against the same
// image, the only condition under which comparing their offsets is
// meaningful.
func (f FileAddr) SameImage(other FileAddr) bool {
	return f.Img == other.Img
}
