package poller

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"roomload/core-go/internal/sqlcgen"
	"roomload/core-go/internal/topology"
)

// Queries is the read side of the topology store.
//
// *sqlcgen.Queries satisfies this.
type Queries interface {
	ListBuildings(ctx context.Context, buildingID *int64) ([]sqlcgen.Building, error)
	ListFloors(ctx context.Context, buildingID *int64) ([]sqlcgen.Floor, error)
	ListRooms(ctx context.Context, buildingID *int64) ([]sqlcgen.Room, error)
	ListRoomAccesspoints(ctx context.Context, buildingID *int64) ([]sqlcgen.RoomAccesspoint, error)
	ListAccessPoints(ctx context.Context) ([]sqlcgen.AccessPoint, error)
}

// Fetch reads one snapshot of the topology. The reads run concurrently and
// the first failure cancels the rest; a partial snapshot is never returned.
// buildingID 0 reads every building.
func Fetch(ctx context.Context, q Queries, buildingID int64, takenAt time.Time) (*topology.Snapshot, error) {
	var filter *int64
	if buildingID > 0 {
		filter = &buildingID
	}

	var (
		buildings []sqlcgen.Building
		floors    []sqlcgen.Floor
		rooms     []sqlcgen.Room
		assocs    []sqlcgen.RoomAccesspoint
		aps       []sqlcgen.AccessPoint
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		buildings, err = q.ListBuildings(gctx, filter)
		return wrapRead("buildings", err)
	})
	g.Go(func() (err error) {
		floors, err = q.ListFloors(gctx, filter)
		return wrapRead("floors", err)
	})
	g.Go(func() (err error) {
		rooms, err = q.ListRooms(gctx, filter)
		return wrapRead("rooms", err)
	})
	g.Go(func() (err error) {
		assocs, err = q.ListRoomAccesspoints(gctx, filter)
		return wrapRead("room access points", err)
	})
	g.Go(func() (err error) {
		aps, err = q.ListAccessPoints(gctx)
		return wrapRead("access points", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &topology.Snapshot{
		TakenAt:      takenAt,
		Buildings:    make([]topology.Building, 0, len(buildings)),
		Floors:       make([]topology.Floor, 0, len(floors)),
		Rooms:        make([]topology.Room, 0, len(rooms)),
		Associations: make([]topology.RoomAccesspoint, 0, len(assocs)),
		AccessPoints: make([]topology.AccessPoint, 0, len(aps)),
	}
	for _, b := range buildings {
		snap.Buildings = append(snap.Buildings, topology.Building{
			ID:          topology.BuildingID(b.ID),
			Name:        b.Name,
			Description: deref(b.Description),
		})
	}
	for _, f := range floors {
		snap.Floors = append(snap.Floors, topology.Floor{
			ID:          topology.FloorID(f.ID),
			BuildingID:  topology.BuildingID(f.BuildingID),
			Name:        f.Name,
			Description: deref(f.Description),
		})
	}
	for _, r := range rooms {
		room := topology.Room{
			ID:       topology.RoomID(r.ID),
			FloorID:  topology.FloorID(r.FloorID),
			Name:     r.Name,
			Type:     deref(r.Type),
			IsActive: r.IsActive,
		}
		if r.Capacity != nil {
			room.Capacity = int(*r.Capacity)
		}
		snap.Rooms = append(snap.Rooms, room)
	}
	for _, a := range assocs {
		snap.Associations = append(snap.Associations, topology.RoomAccesspoint{
			RoomID:        topology.RoomID(a.RoomID),
			AccesspointID: topology.AccessPointID(a.AccesspointID),
		})
	}
	for _, ap := range aps {
		snap.AccessPoints = append(snap.AccessPoints, accessPointFromRow(ap))
	}
	return snap, nil
}

// accessPointFromRow maps a store row. A NULL device count reads as 0;
// negative counts are kept so aggregation can report them.
func accessPointFromRow(ap sqlcgen.AccessPoint) topology.AccessPoint {
	out := topology.AccessPoint{
		ID:          topology.AccessPointID(ap.ID),
		Name:        deref(ap.Name),
		MAC:         deref(ap.MAC),
		IPAddress:   deref(ap.IPAddress),
		Description: deref(ap.Description),
		Group:       deref(ap.ApGroup),
		Status:      deref(ap.Status),
		Model:       deref(ap.Model),
		SWVersion:   deref(ap.SWVersion),
		Channel:     deref(ap.Channel),
		Band:        deref(ap.Band),
		Uptime:      deref(ap.Uptime),
	}
	if ap.ConnectedDevices != nil {
		out.ConnectedDevices = int(*ap.ConnectedDevices)
	}
	return out
}

func wrapRead(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("list %s: %w", what, err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
