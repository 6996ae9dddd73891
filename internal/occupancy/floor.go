package occupancy

import (
	"sort"

	"roomload/core-go/internal/topology"
)

type RoomOccupancy struct {
	Room      topology.Room
	Occupancy int
	Tier      Tier
	Placed    bool
}

// FloorOverlay is the rendered view of a single floor.
type FloorOverlay struct {
	Floor    topology.Floor
	Rooms    []RoomOccupancy
	Rects    []OverlayRect
	Unplaced []topology.RoomID
}

// TierCounts counts the floor's active rooms per tier.
func (f FloorOverlay) TierCounts() map[Tier]int {
	out := map[Tier]int{TierLow: 0, TierMedium: 0, TierHigh: 0}
	for _, r := range f.Rooms {
		out[r.Tier]++
	}
	return out
}

// ComputeFloor runs aggregate, classify and resolve for one floor of a
// snapshot.
func ComputeFloor(snap *topology.Snapshot, floor topology.Floor, reg Lookup) (FloorOverlay, Aggregation) {
	var rooms []topology.Room
	var assocs []topology.RoomAccesspoint
	var aps []topology.AccessPoint
	if snap != nil {
		rooms = snap.RoomsOnFloor(floor.ID)
		assocs = snap.Associations
		aps = snap.AccessPoints
	}

	agg := Aggregate(floor, rooms, assocs, aps)

	labels := make(map[topology.RoomID]string, len(rooms))
	for _, r := range rooms {
		labels[r.ID] = r.Name
	}
	roomLabelOf := func(id topology.RoomID) (string, bool) {
		l, ok := labels[id]
		return l, ok
	}

	rects := Resolve(floor.Name, agg.Occupancy, roomLabelOf, reg)
	placed := make(map[topology.RoomID]struct{}, len(rects))
	for _, r := range rects {
		placed[r.RoomID] = struct{}{}
	}

	out := FloorOverlay{
		Floor: floor,
		Rooms: make([]RoomOccupancy, 0, len(agg.Occupancy)),
		Rects: rects,
	}
	for _, r := range rooms {
		occ, ok := agg.Occupancy[r.ID]
		if !ok {
			continue
		}
		_, isPlaced := placed[r.ID]
		out.Rooms = append(out.Rooms, RoomOccupancy{
			Room:      r,
			Occupancy: occ,
			Tier:      Classify(occ),
			Placed:    isPlaced,
		})
		if !isPlaced {
			out.Unplaced = append(out.Unplaced, r.ID)
		}
	}
	sort.Slice(out.Rooms, func(i, j int) bool { return out.Rooms[i].Room.ID < out.Rooms[j].Room.ID })
	sort.Slice(out.Unplaced, func(i, j int) bool { return out.Unplaced[i] < out.Unplaced[j] })

	return out, agg
}

// ComputeAll computes every floor of the snapshot in FloorsInOrder order. The
// aggregation issues of all floors are merged; access points clamped or
// associations duplicated are reported once.
func ComputeAll(snap *topology.Snapshot, reg Lookup) ([]FloorOverlay, Aggregation) {
	floors := snap.FloorsInOrder()
	out := make([]FloorOverlay, 0, len(floors))
	merged := Aggregation{Occupancy: make(map[topology.RoomID]int)}

	for i, f := range floors {
		fo, agg := ComputeFloor(snap, f, reg)
		out = append(out, fo)
		for id, n := range agg.Occupancy {
			merged.Occupancy[id] = n
		}
		merged.Dangling = append(merged.Dangling, agg.Dangling...)
		if i == 0 {
			merged.Duplicates = agg.Duplicates
			merged.Clamped = agg.Clamped
		}
	}
	return out, merged
}
