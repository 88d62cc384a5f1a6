package dwarfx

// abbrevAttr is one (attribute, form) pair inside an abbreviation declaration.
type abbrevAttr struct {
	Attr Attr
	Form Form
}

// Abbrev is one decoded abbreviation table entry: the shape shared by every
// DIE that references this code.
type Abbrev struct {
	Tag      Tag
	Children bool
	Attrs    []abbrevAttr
}

// abbrevTable maps abbreviation code to its declaration, for one compile
// unit's slice of .debug_abbrev.
type abbrevTable map[uint64]*Abbrev

// decodeAbbrevTable decodes one contiguous abbreviation table, stopping at
// the terminating zero code (DWARF v4, section 7.5.3).
func decodeAbbrevTable(data []byte) abbrevTable {
	table := make(abbrevTable)
	off := 0
	for off < len(data) {
		code, next := DecodeULEB128(data, off)
		off = next
		if code == 0 {
			break
		}
		tag, next := DecodeULEB128(data, off)
		off = next
		children := data[off] != 0
		off++

		var attrs []abbrevAttr
		for {
			at, next := DecodeULEB128(data, off)
			off = next
			form, next := DecodeULEB128(data, off)
			off = next
			if at == 0 && form == 0 {
				break
			}
			attrs = append(attrs, abbrevAttr{Attr: Attr(at), Form: Form(form)})
		}
		table[code] = &Abbrev{Tag: Tag(tag), Children: children, Attrs: attrs}
	}
	return table
}
