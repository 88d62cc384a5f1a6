package dbgerr_test

import (
	"errors"
	"testing"

	"github.com/go-mdb/mdb/pkg/dbgerr"
)

func TestSysMessageFormat(t *testing.T) {
	err := dbgerr.Sys("ptrace(PEEKDATA)", errors.New("no such process"))
	want := "ptrace(PEEKDATA): no such process"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if err.Kind != dbgerr.SystemCall {
		t.Fatalf("Kind = %v, want SystemCall", err.Kind)
	}
}

func TestKindOf(t *testing.T) {
	err := dbgerr.Precondition("watchpoint address %#x is not aligned to size %d", 0x1001, 4)
	kind, ok := dbgerr.KindOf(err)
	if !ok || kind != dbgerr.PreconditionViolated {
		t.Fatalf("KindOf(%v) = %v, %v", err, kind, ok)
	}

	if _, ok := dbgerr.KindOf(errors.New("plain")); ok {
		t.Fatal("KindOf should not match a plain error")
	}
}

func TestKindStrings(t *testing.T) {
	cases := map[dbgerr.Kind]string{
		dbgerr.SystemCall:           "system-call-failure",
		dbgerr.InvalidFormat:        "invalid-format",
		dbgerr.UnknownEntity:        "unknown-entity",
		dbgerr.PreconditionViolated: "precondition-violated",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
