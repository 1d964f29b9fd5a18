package glyph

// slotArena is a stable-index slot table with generation checking.
// Indices are never reused while a slot is live; releasing a slot bumps its
// generation and returns the index to the free list, so any SlotRef issued
// before the release fails to resolve. Generations start at 1 so the zero
// SlotRef never resolves.
type slotArena struct {
	slots []arenaEntry
	free  []int32
	live  int
}

type arenaEntry struct {
	gen  uint32
	slot AtlasSlot
	used bool
}

func newSlotArena(capacity int) *slotArena {
	return &slotArena{
		slots: make([]arenaEntry, 0, capacity),
	}
}

// insert stores a slot and returns its ref.
func (a *slotArena) insert(slot AtlasSlot) SlotRef {
	a.live++
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		e := &a.slots[idx]
		e.slot = slot
		e.used = true
		return SlotRef{Index: idx, Gen: e.gen}
	}
	a.slots = append(a.slots, arenaEntry{gen: 1, slot: slot, used: true})
	return SlotRef{Index: int32(len(a.slots) - 1), Gen: 1}
}

// resolve returns the slot for ref if it is still live at the same
// generation.
func (a *slotArena) resolve(ref SlotRef) (AtlasSlot, bool) {
	if ref.Index < 0 || int(ref.Index) >= len(a.slots) {
		return AtlasSlot{}, false
	}
	e := &a.slots[ref.Index]
	if !e.used || e.gen != ref.Gen {
		return AtlasSlot{}, false
	}
	return e.slot, true
}

// release invalidates ref's slot and recycles the index.
// Releasing an already-dead ref is a no-op.
func (a *slotArena) release(ref SlotRef) {
	if ref.Index < 0 || int(ref.Index) >= len(a.slots) {
		return
	}
	e := &a.slots[ref.Index]
	if !e.used || e.gen != ref.Gen {
		return
	}
	e.used = false
	e.gen++
	a.live--
	a.free = append(a.free, ref.Index)
}

// reset invalidates every slot. Outstanding refs all fail resolution.
func (a *slotArena) reset() {
	for i := range a.slots {
		if a.slots[i].used {
			a.slots[i].used = false
			a.slots[i].gen++
		}
	}
	a.free = a.free[:0]
	for i := range a.slots {
		a.free = append(a.free, int32(i))
	}
	a.live = 0
}

// len returns the number of live slots.
func (a *slotArena) len() int {
	return a.live
}
