package stoppoint

// Mode is the access type a hardware stop-point traps on, encoded into
// DR7's two-bit condition field per DR7[condition] in the Intel SDM.
type Mode byte

const (
	ModeExecute   Mode = 0x0
	ModeWrite     Mode = 0x1
	ModeReadWrite Mode = 0x3
)

func (m Mode) String() string {
	switch m {
	case ModeExecute:
		return "execute"
	case ModeWrite:
		return "write"
	case ModeReadWrite:
		return "read_write"
	default:
		return "unknown"
	}
}
