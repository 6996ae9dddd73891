package occupancy

import (
	"sort"

	"roomload/core-go/internal/registry"
	"roomload/core-go/internal/topology"
)

// Lookup is the read side of the spatial registry.
type Lookup interface {
	Lookup(floorLabel, roomLabel string) (registry.Rect, bool)
}

type OverlayRect struct {
	RoomID    topology.RoomID
	Room      string
	X         float64
	Y         float64
	Width     float64
	Height    float64
	Tier      Tier
	Occupancy int
}

// Resolve places every room of occupancy on the floor plan. Rooms without a
// label or without a registry entry are left out. The result is sorted by room
// id, but callers should treat it as unordered.
func Resolve(floorLabel string, occupancy map[topology.RoomID]int, roomLabelOf func(topology.RoomID) (string, bool), reg Lookup) []OverlayRect {
	out := make([]OverlayRect, 0, len(occupancy))
	if reg == nil || roomLabelOf == nil {
		return out
	}

	for roomID, occ := range occupancy {
		label, ok := roomLabelOf(roomID)
		if !ok {
			continue
		}
		rect, ok := reg.Lookup(floorLabel, label)
		if !ok {
			continue
		}
		out = append(out, OverlayRect{
			RoomID:    roomID,
			Room:      label,
			X:         rect.X,
			Y:         rect.Y,
			Width:     rect.Width,
			Height:    rect.Height,
			Tier:      Classify(occ),
			Occupancy: occ,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}
