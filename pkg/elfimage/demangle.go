package elfimage

import (
	"strconv"
	"strings"
)

// Demangle turns an Itanium C++ ABI mangled name ("_ZN...") into a
// best-effort human-readable form. No repository retrieved for this
// spec imports a demangling library (the corpus's only "demangle" hit is
// an unrelated struct field name), so this is implemented directly against
// the encoding described in the Itanium C++ ABI, covering the common case
// of source and nested names; the parameter types that follow the name are
// not decoded and do not appear in the result, and template arguments are
// not handled. Anything it does not recognize is
// returned unchanged, matching gnu c++filt's behavior on inputs it can't
// parse either.
func Demangle(name string) string {
	if !strings.HasPrefix(name, "_Z") {
		return name
	}
	d := &demangler{s: name[2:]}
	out, ok := d.parseEncoding()
	if !ok {
		return name
	}
	return out
}

type demangler struct {
	s string
}

func (d *demangler) parseEncoding() (string, bool) {
	name, ok := d.parseName()
	if !ok {
		return "", false
	}
	// Anything left is the bare-function argument encoding; this debugger
	// only needs symbol display names, not full signatures, so it is
	// intentionally left unparsed.
	return name, true
}

func (d *demangler) parseName() (string, bool) {
	if strings.HasPrefix(d.s, "N") {
		d.s = d.s[1:]
		return d.parseNestedName()
	}
	return d.parseSourceName()
}

func (d *demangler) parseNestedName() (string, bool) {
	var parts []string
	for {
		// CV-qualifiers and ref-qualifiers, if present, are skipped.
		for len(d.s) > 0 && strings.ContainsRune("rVKR", rune(d.s[0])) {
			d.s = d.s[1:]
		}
		if strings.HasPrefix(d.s, "E") {
			d.s = d.s[1:]
			break
		}
		part, ok := d.parseSourceName()
		if !ok {
			return "", false
		}
		parts = append(parts, part)
		if strings.HasPrefix(d.s, "E") {
			d.s = d.s[1:]
			break
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "::"), true
}

func (d *demangler) parseSourceName() (string, bool) {
	i := 0
	for i < len(d.s) && d.s[i] >= '0' && d.s[i] <= '9' {
		i++
	}
	if i == 0 {
		return "", false
	}
	n, err := strconv.Atoi(d.s[:i])
	if err != nil || n <= 0 || i+n > len(d.s) {
		return "", false
	}
	out := d.s[i : i+n]
	d.s = d.s[i+n:]
	return out, true
}
