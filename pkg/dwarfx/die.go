package dwarfx

import (
	"encoding/binary"

	"github.com/go-mdb/mdb/pkg/dbgerr"
)

// attrValueLoc records where an attribute's value starts in .debug_info
// without decoding it. Most DIEs visited during a stack walk are only ever
// asked for their tag and low/high pc, so decoding every attribute eagerly
// would waste time on values nobody reads.
type attrValueLoc struct {
	Attr Attr
	Form Form
	off  uint64
}

// DIE is one Debugging Information Entry.
type DIE struct {
	Offset   uint64
	Tag      Tag
	Children bool

	attrs []attrValueLoc
	d     *Data
	cu    CompileUnitHeader
}

// DIEAt decodes the DIE (and its attribute locations, not their values) at
// off within cu, returning the offset immediately following it. A nil DIE
// with no error means off was a null entry, i.e. end of a sibling chain.
func (d *Data) DIEAt(off uint64, cu CompileUnitHeader) (*DIE, uint64, error) {
	if off >= uint64(len(d.info)) {
		return nil, off, dbgerr.Format(".debug_info: DIE offset 0x%x out of range", off)
	}
	dieOffset := off
	code, next := DecodeULEB128(d.info, int(off))
	off = uint64(next)
	if code == 0 {
		return nil, off, nil
	}

	table, err := d.abbrevTableAt(cu.AbbrevOff)
	if err != nil {
		return nil, 0, err
	}
	ab, ok := table[code]
	if !ok {
		return nil, 0, dbgerr.Format(".debug_abbrev: no code %d in table at 0x%x", code, cu.AbbrevOff)
	}

	die := &DIE{Offset: dieOffset, Tag: ab.Tag, Children: ab.Children, d: d, cu: cu}
	for _, a := range ab.Attrs {
		valOff := off
		next, err := d.skipForm(off, a.Form, cu)
		if err != nil {
			return nil, 0, err
		}
		die.attrs = append(die.attrs, attrValueLoc{Attr: a.Attr, Form: a.Form, off: valOff})
		off = next
	}
	return die, off, nil
}

// ChildrenDIEs returns die's immediate children, if any. It returns nil if
// the abbreviation declared no children. The first decode error aborts the
// walk and is returned.
func (die *DIE) ChildrenDIEs() ([]*DIE, error) {
	if !die.Children {
		return nil, nil
	}
	var kids []*DIE
	off := die.d.dieEndOffset(die)
	for {
		child, next, err := die.d.DIEAt(off, die.cu)
		if err != nil {
			return nil, err
		}
		if child == nil {
			break
		}
		kids = append(kids, child)
		if child.Children {
			// Skip past the entire subtree; callers that need grandchildren
			// call ChildrenDIEs again on the child.
			skipTo, err := die.d.skipSubtree(next, child.cu)
			if err != nil {
				return nil, err
			}
			off = skipTo
		} else {
			off = next
		}
	}
	return kids, nil
}

// dieEndOffset recomputes where die's own attribute list ended, i.e. where
// its first child (or its terminating null) begins.
func (d *Data) dieEndOffset(die *DIE) uint64 {
	if len(die.attrs) == 0 {
		_, next := DecodeULEB128(d.info, int(die.Offset))
		return uint64(next)
	}
	last := die.attrs[len(die.attrs)-1]
	end, _ := d.skipForm(last.off, last.Form, die.cu)
	return end
}

// skipSubtree advances past a sequence of sibling DIEs (and their children)
// until the terminating null entry, used to skip over a child's own
// descendants when the caller only wants direct children.
func (d *Data) skipSubtree(off uint64, cu CompileUnitHeader) (uint64, error) {
	depth := 0
	for {
		die, next, err := d.DIEAt(off, cu)
		if err != nil {
			return 0, err
		}
		if die == nil {
			if depth == 0 {
				return next, nil
			}
			depth--
			off = next
			continue
		}
		if die.Children {
			depth++
		}
		off = next
	}
}

// Value is a decoded attribute value. Exactly one of U, I, S, Block is
// meaningful, per Form.
type Value struct {
	Attr  Attr
	Form  Form
	U     uint64
	I     int64
	S     string
	Block []byte
}

// Attr looks up attr on die, decoding its value on demand.
func (die *DIE) Attr(attr Attr) (Value, bool) {
	for _, loc := range die.attrs {
		if loc.Attr == attr {
			return die.d.decodeValue(loc), true
		}
	}
	return Value{}, false
}

// Name is a convenience wrapper around Attr(AttrName).
func (die *DIE) Name() (string, bool) {
	v, ok := die.Attr(AttrName)
	if !ok {
		return "", false
	}
	return v.S, true
}

// LowHighPC decodes AttrLowpc/AttrHighpc, handling the DWARF v4 convention
// where AttrHighpc using a non-address form (FormData*) is an offset
// relative to lowpc rather than an absolute address.
func (die *DIE) LowHighPC() (lo, hi uint64, ok bool) {
	lv, lok := die.Attr(AttrLowpc)
	hv, hok := die.Attr(AttrHighpc)
	if !lok || !hok {
		return 0, 0, false
	}
	lo = lv.U
	if hv.Form == FormAddr {
		hi = hv.U
	} else {
		hi = lo + hv.U
	}
	return lo, hi, true
}

func (d *Data) skipForm(off uint64, form Form, cu CompileUnitHeader) (uint64, error) {
	data := d.info
	if off > uint64(len(data)) {
		return 0, dbgerr.Format(".debug_info: attribute offset 0x%x out of range", off)
	}
	switch form {
	case FormAddr:
		return off + uint64(cu.AddrSize), nil
	case FormBlock1:
		n := uint64(data[off])
		return off + 1 + n, nil
	case FormBlock2:
		n := uint64(binary.LittleEndian.Uint16(data[off:]))
		return off + 2 + n, nil
	case FormBlock4:
		n := uint64(binary.LittleEndian.Uint32(data[off:]))
		return off + 4 + n, nil
	case FormBlock, FormExprloc:
		n, next := DecodeULEB128(data, int(off))
		return uint64(next) + n, nil
	case FormData1, FormRef1, FormFlag:
		return off + 1, nil
	case FormData2, FormRef2:
		return off + 2, nil
	case FormData4, FormRef4, FormSecOffset, FormStrp, FormRefAddr:
		return off + 4, nil
	case FormData8, FormRef8, FormRefSig8:
		return off + 8, nil
	case FormSdata:
		_, next := DecodeSLEB128(data, int(off))
		return uint64(next), nil
	case FormUdata, FormRefUdata:
		_, next := DecodeULEB128(data, int(off))
		return uint64(next), nil
	case FormString:
		i := off
		for i < uint64(len(data)) && data[i] != 0 {
			i++
		}
		return i + 1, nil
	case FormFlagPresent:
		return off, nil
	case FormIndirect:
		realForm, next := DecodeULEB128(data, int(off))
		return d.skipForm(uint64(next), Form(realForm), cu)
	default:
		return 0, dbgerr.Format(".debug_info: unsupported form 0x%x", form)
	}
}

func (d *Data) decodeValue(loc attrValueLoc) Value {
	data := d.info
	off := loc.off
	v := Value{Attr: loc.Attr, Form: loc.Form}
	switch loc.Form {
	case FormAddr:
		v.U = binary.LittleEndian.Uint64(data[off:]) // amd64-only: address_size is always 8
	case FormData1, FormRef1, FormFlag:
		v.U = uint64(data[off])
	case FormData2, FormRef2:
		v.U = uint64(binary.LittleEndian.Uint16(data[off:]))
	case FormData4, FormRef4, FormSecOffset:
		v.U = uint64(binary.LittleEndian.Uint32(data[off:]))
	case FormData8, FormRef8, FormRefSig8:
		v.U = binary.LittleEndian.Uint64(data[off:])
	case FormRefAddr:
		v.U = uint64(binary.LittleEndian.Uint32(data[off:]))
	case FormSdata:
		v.I, _ = DecodeSLEB128(data, int(off))
	case FormUdata, FormRefUdata:
		v.U, _ = DecodeULEB128(data, int(off))
	case FormStrp:
		strOff := uint64(binary.LittleEndian.Uint32(data[off:]))
		v.S = cstrAt(d.str, strOff)
	case FormString:
		i := off
		for i < uint64(len(data)) && data[i] != 0 {
			i++
		}
		v.S = string(data[off:i])
	case FormFlagPresent:
		v.U = 1
	case FormBlock1:
		n := uint64(data[off])
		v.Block = data[off+1 : off+1+n]
	case FormBlock2:
		n := uint64(binary.LittleEndian.Uint16(data[off:]))
		v.Block = data[off+2 : off+2+n]
	case FormBlock4:
		n := uint64(binary.LittleEndian.Uint32(data[off:]))
		v.Block = data[off+4 : off+4+n]
	case FormBlock, FormExprloc:
		n, next := DecodeULEB128(data, int(off))
		v.Block = data[next : uint64(next)+n]
	}
	return v
}

// ResolveRef follows a reference-class attribute value (spec.md §4.7's
// as_reference accessor, e.g. AttrType, AttrSpecification,
// AttrAbstractOrigin) to the DIE it names. FormRef1/2/4/8/RefUdata store an
// offset relative to the start of from, the referencing DIE's own compile
// unit; FormRefAddr stores an absolute .debug_info offset that may land in
// any compile unit, so it's resolved by scanning CompileUnits for the one
// that contains it.
func (d *Data) ResolveRef(from CompileUnitHeader, v Value) (*DIE, error) {
	switch v.Form {
	case FormRef1, FormRef2, FormRef4, FormRef8, FormRefUdata:
		die, _, err := d.DIEAt(from.Offset+v.U, from)
		if err != nil {
			return nil, err
		}
		if die == nil {
			return nil, dbgerr.Format(".debug_info: CU-relative reference 0x%x resolves to a null entry", v.U)
		}
		return die, nil
	case FormRefAddr:
		cus, err := d.CompileUnits()
		if err != nil {
			return nil, err
		}
		for _, cu := range cus {
			if v.U < cu.Offset || v.U >= cu.End {
				continue
			}
			die, _, err := d.DIEAt(v.U, cu)
			if err != nil {
				return nil, err
			}
			if die == nil {
				return nil, dbgerr.Format(".debug_info: ref_addr 0x%x resolves to a null entry", v.U)
			}
			return die, nil
		}
		return nil, dbgerr.Format(".debug_info: ref_addr 0x%x does not fall within any compile unit", v.U)
	default:
		return nil, dbgerr.Format(".debug_info: form 0x%x is not a reference form", v.Form)
	}
}

func cstrAt(data []byte, off uint64) string {
	if off >= uint64(len(data)) {
		return ""
	}
	i := off
	for i < uint64(len(data)) && data[i] != 0 {
		i++
	}
	return string(data[off:i])
}
