package elfimage_test

import (
	"testing"

	"github.com/go-mdb/mdb/pkg/elfimage"
)

func TestDemangleSimpleFunction(t *testing.T) {
	if got := elfimage.Demangle("_Z3fooi"); got != "foo" {
		t.Fatalf("Demangle(_Z3fooi) = %q, want %q", got, "foo")
	}
}

func TestDemangleNestedName(t *testing.T) {
	if got := elfimage.Demangle("_ZN3Foo3barEv"); got != "Foo::bar" {
		t.Fatalf("Demangle(_ZN3Foo3barEv) = %q, want %q", got, "Foo::bar")
	}
}

func TestDemangleLeavesNonMangledNamesAlone(t *testing.T) {
	for _, name := range []string{"main", "_start", "printf"} {
		if got := elfimage.Demangle(name); got != name {
			t.Fatalf("Demangle(%q) = %q, want unchanged", name, got)
		}
	}
}

func TestDemangleLeavesUnparsableInputAlone(t *testing.T) {
	in := "_Z"
	if got := elfimage.Demangle(in); got != in {
		t.Fatalf("Demangle(%q) = %q, want unchanged", in, got)
	}
}
