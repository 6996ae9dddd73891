// Package occupancy turns a topology snapshot into per-room occupancy, load
// tiers and floor-plan overlay rectangles. Everything here is a pure function
// of its inputs.
package occupancy

import (
	"sort"

	"roomload/core-go/internal/topology"
)

// Aggregation is the result of Aggregate. The issue lists let the caller log
// data-integrity warnings; none of them fail the computation.
type Aggregation struct {
	Occupancy map[topology.RoomID]int

	// Dangling lists associations of aggregated rooms whose access point is
	// missing from the snapshot. They contributed 0.
	Dangling []topology.RoomAccesspoint
	// Duplicates lists repeated (room, access point) pairs that were ignored.
	Duplicates []topology.RoomAccesspoint
	// Clamped lists access points whose device count was negative and read as 0.
	Clamped []topology.AccessPointID
}

// Aggregate computes the occupancy of every active room on floor. Rooms that
// are inactive or belong to another floor are skipped even when passed in.
// Each association contributes the full device count of its access point.
func Aggregate(floor topology.Floor, rooms []topology.Room, assocs []topology.RoomAccesspoint, aps []topology.AccessPoint) Aggregation {
	devices := make(map[topology.AccessPointID]int, len(aps))
	var clamped []topology.AccessPointID
	for _, ap := range aps {
		n := ap.ConnectedDevices
		if n < 0 {
			clamped = append(clamped, ap.ID)
			n = 0
		}
		devices[ap.ID] = n
	}

	idx := topology.NewAssociationIndex(assocs)

	out := Aggregation{
		Occupancy:  make(map[topology.RoomID]int, len(rooms)),
		Duplicates: idx.Duplicates(),
		Clamped:    clamped,
	}

	for _, room := range rooms {
		if !room.IsActive || room.FloorID != floor.ID {
			continue
		}
		if _, done := out.Occupancy[room.ID]; done {
			continue
		}

		total := 0
		for _, apID := range idx.ForRoom(room.ID) {
			n, ok := devices[apID]
			if !ok {
				out.Dangling = append(out.Dangling, topology.RoomAccesspoint{RoomID: room.ID, AccesspointID: apID})
				continue
			}
			total += n
		}
		out.Occupancy[room.ID] = total
	}

	sort.Slice(out.Dangling, func(i, j int) bool {
		if out.Dangling[i].RoomID != out.Dangling[j].RoomID {
			return out.Dangling[i].RoomID < out.Dangling[j].RoomID
		}
		return out.Dangling[i].AccesspointID < out.Dangling[j].AccesspointID
	})

	return out
}
