package stoppoint

// CatchMode selects which syscalls the engine reports stops for.
type CatchMode int

const (
	// CatchNone disables syscall tracing; the engine uses plain
	// PTRACE_CONT and no syscall stop is ever surfaced.
	CatchNone CatchMode = iota
	// CatchAll reports every syscall entry and exit.
	CatchAll
	// CatchSome reports only the syscall numbers in Policy.IDs.
	CatchSome
)

// Policy describes which syscalls a resumed process should stop for.
type Policy struct {
	Mode CatchMode
	IDs  map[int]bool
}

// NewCatchAllPolicy reports every syscall.
func NewCatchAllPolicy() Policy { return Policy{Mode: CatchAll} }

// NewCatchNonePolicy disables syscall tracing.
func NewCatchNonePolicy() Policy { return Policy{Mode: CatchNone} }

// NewCatchSomePolicy reports only the given syscall numbers.
func NewCatchSomePolicy(ids ...int) Policy {
	m := make(map[int]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return Policy{Mode: CatchSome, IDs: m}
}

// Matches reports whether a syscall with the given number should be
// surfaced as a stop, per spec.md's "outward-visible sequence never
// reports uninteresting syscall stops" rule.
func (p Policy) Matches(id int) bool {
	switch p.Mode {
	case CatchNone:
		return false
	case CatchAll:
		return true
	case CatchSome:
		return p.IDs[id]
	default:
		return false
	}
}
