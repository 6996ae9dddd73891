package topology

// AssociationIndex stores association records in a flat arena and indexes them
// by room and by access point. Entries point into the arena by position, so the
// index never holds references between rooms and access points directly.
type AssociationIndex struct {
	arena         []RoomAccesspoint
	byRoom        map[RoomID][]int
	byAccessPoint map[AccessPointID][]int
	duplicates    []RoomAccesspoint
}

// NewAssociationIndex builds the index. A repeated (room, access point) pair is
// kept once; the extra copies are reported by Duplicates.
func NewAssociationIndex(assocs []RoomAccesspoint) *AssociationIndex {
	idx := &AssociationIndex{
		arena:         make([]RoomAccesspoint, 0, len(assocs)),
		byRoom:        make(map[RoomID][]int),
		byAccessPoint: make(map[AccessPointID][]int),
	}

	seen := make(map[RoomAccesspoint]struct{}, len(assocs))
	for _, ra := range assocs {
		if _, ok := seen[ra]; ok {
			idx.duplicates = append(idx.duplicates, ra)
			continue
		}
		seen[ra] = struct{}{}

		pos := len(idx.arena)
		idx.arena = append(idx.arena, ra)
		idx.byRoom[ra.RoomID] = append(idx.byRoom[ra.RoomID], pos)
		idx.byAccessPoint[ra.AccesspointID] = append(idx.byAccessPoint[ra.AccesspointID], pos)
	}
	return idx
}

func (x *AssociationIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.arena)
}

// ForRoom returns the access point ids associated with a room.
func (x *AssociationIndex) ForRoom(id RoomID) []AccessPointID {
	if x == nil {
		return nil
	}
	positions := x.byRoom[id]
	out := make([]AccessPointID, 0, len(positions))
	for _, pos := range positions {
		out = append(out, x.arena[pos].AccesspointID)
	}
	return out
}

// ForAccessPoint returns the room ids an access point serves.
func (x *AssociationIndex) ForAccessPoint(id AccessPointID) []RoomID {
	if x == nil {
		return nil
	}
	positions := x.byAccessPoint[id]
	out := make([]RoomID, 0, len(positions))
	for _, pos := range positions {
		out = append(out, x.arena[pos].RoomID)
	}
	return out
}

func (x *AssociationIndex) Duplicates() []RoomAccesspoint {
	if x == nil {
		return nil
	}
	return x.duplicates
}
