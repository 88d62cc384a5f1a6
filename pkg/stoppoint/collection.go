// Package stoppoint holds the breakpoint and watchpoint collections a
// process owns: their lifecycle (enable/disable, software patch vs.
// hardware debug-register allocation) and the generic by-id/by-address
// index every collection needs regardless of what kind of stop-point it
// holds.
package stoppoint

import "github.com/go-mdb/mdb/pkg/dbgerr"

// Disabler is implemented by anything a Collection can hold: removing a
// member always disables it first, so a dangling software breakpoint
// patch or armed debug register never outlives its entry in the collection.
type Disabler interface {
	ID() int
	Address() uint64
	Disable() error
}

// Collection indexes members of type T by id and by address. It holds
// exactly one member per address; inserting at an address that is already
// occupied returns the existing member instead of the new one, matching
// the "duplicate insertion returns the existing member" rule.
type Collection[T Disabler] struct {
	byID   map[int]T
	byAddr map[uint64]T
	nextID int
}

// NewCollection returns an empty collection.
func NewCollection[T Disabler]() *Collection[T] {
	return &Collection[T]{
		byID:   make(map[int]T),
		byAddr: make(map[uint64]T),
	}
}

// NextID returns a fresh, monotonically increasing id for a new member.
func (c *Collection[T]) NextID() int {
	c.nextID++
	return c.nextID
}

// Insert adds member to the collection, unless its address is already
// occupied, in which case the existing occupant is returned unchanged.
func (c *Collection[T]) Insert(member T) T {
	if existing, ok := c.byAddr[member.Address()]; ok {
		return existing
	}
	c.byID[member.ID()] = member
	c.byAddr[member.Address()] = member
	return member
}

// GetByID returns the member with the given id.
func (c *Collection[T]) GetByID(id int) (T, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// GetByAddress returns the member at the given address.
func (c *Collection[T]) GetByAddress(addr uint64) (T, bool) {
	m, ok := c.byAddr[addr]
	return m, ok
}

// ContainsID reports whether id is present.
func (c *Collection[T]) ContainsID(id int) bool {
	_, ok := c.byID[id]
	return ok
}

// ContainsAddress reports whether addr is occupied.
func (c *Collection[T]) ContainsAddress(addr uint64) bool {
	_, ok := c.byAddr[addr]
	return ok
}

// RemoveByID disables and removes the member with the given id.
func (c *Collection[T]) RemoveByID(id int) error {
	m, ok := c.byID[id]
	if !ok {
		return dbgerr.Unknown("no stop-point with id %d", id)
	}
	if err := m.Disable(); err != nil {
		return err
	}
	delete(c.byID, id)
	delete(c.byAddr, m.Address())
	return nil
}

// Empty reports whether the collection has no members.
func (c *Collection[T]) Empty() bool { return len(c.byID) == 0 }

// Len reports the number of members.
func (c *Collection[T]) Len() int { return len(c.byID) }

// Each calls fn for every member, in no particular order.
func (c *Collection[T]) Each(fn func(T)) {
	for _, m := range c.byID {
		fn(m)
	}
}
