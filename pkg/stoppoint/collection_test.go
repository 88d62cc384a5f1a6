package stoppoint

import "testing"

type fakeMember struct {
	id       int
	addr     uint64
	disabled bool
}

func (m *fakeMember) ID() int         { return m.id }
func (m *fakeMember) Address() uint64 { return m.addr }
func (m *fakeMember) Disable() error  { m.disabled = true; return nil }

func TestInsertDedupesByAddress(t *testing.T) {
	c := NewCollection[*fakeMember]()
	first := &fakeMember{id: c.NextID(), addr: 0x1000}
	c.Insert(first)

	second := &fakeMember{id: c.NextID(), addr: 0x1000}
	got := c.Insert(second)
	if got != first {
		t.Fatal("expected Insert at an occupied address to return the existing member")
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestRemoveByIDDisablesFirst(t *testing.T) {
	c := NewCollection[*fakeMember]()
	m := &fakeMember{id: c.NextID(), addr: 0x2000}
	c.Insert(m)

	if err := c.RemoveByID(m.id); err != nil {
		t.Fatalf("RemoveByID: %v", err)
	}
	if !m.disabled {
		t.Error("expected member to be disabled before removal")
	}
	if c.ContainsID(m.id) || c.ContainsAddress(m.addr) {
		t.Error("expected member to be fully removed from both indexes")
	}
}

func TestRemoveByIDUnknown(t *testing.T) {
	c := NewCollection[*fakeMember]()
	if err := c.RemoveByID(99); err == nil {
		t.Fatal("expected an error removing an unknown id")
	}
}

func TestGetByAddressAndByID(t *testing.T) {
	c := NewCollection[*fakeMember]()
	m := &fakeMember{id: c.NextID(), addr: 0x3000}
	c.Insert(m)

	if got, ok := c.GetByAddress(0x3000); !ok || got != m {
		t.Fatal("GetByAddress failed to find inserted member")
	}
	if got, ok := c.GetByID(m.id); !ok || got != m {
		t.Fatal("GetByID failed to find inserted member")
	}
	if c.Empty() {
		t.Fatal("expected collection to be non-empty")
	}
}
