// Package topology holds the read-only building graph the occupancy pipeline
// consumes: buildings, floors, rooms, access points and the room/access point
// association records.
package topology

import (
	"sort"
	"time"
)

type (
	BuildingID    int64
	FloorID       int64
	RoomID        int64
	AccessPointID int64
)

type Building struct {
	ID          BuildingID
	Name        string
	Description string
}

// Floor.Name is the display label ("EG", "1. Stock", ...) and doubles as the
// outer key into the spatial registry.
type Floor struct {
	ID          FloorID
	BuildingID  BuildingID
	Name        string
	Description string
}

// Room.Name is the room-number label used as the inner registry key.
type Room struct {
	ID       RoomID
	FloorID  FloorID
	Name     string
	Capacity int
	Type     string
	IsActive bool
}

// AccessPoint carries network metadata that is opaque to the pipeline; only
// ConnectedDevices feeds occupancy.
type AccessPoint struct {
	ID               AccessPointID
	Name             string
	MAC              string
	IPAddress        string
	Description      string
	ConnectedDevices int
	Group            string
	Status           string
	Model            string
	SWVersion        string
	Channel          string
	Band             string
	Uptime           string
}

type RoomAccesspoint struct {
	RoomID        RoomID
	AccesspointID AccessPointID
}

// Snapshot is one consistent read of the topology store.
type Snapshot struct {
	TakenAt      time.Time
	Buildings    []Building
	Floors       []Floor
	Rooms        []Room
	Associations []RoomAccesspoint
	AccessPoints []AccessPoint
}

func (s *Snapshot) Floor(id FloorID) (Floor, bool) {
	if s == nil {
		return Floor{}, false
	}
	for _, f := range s.Floors {
		if f.ID == id {
			return f, true
		}
	}
	return Floor{}, false
}

// FloorsInOrder returns floors sorted by building then floor id.
func (s *Snapshot) FloorsInOrder() []Floor {
	if s == nil {
		return nil
	}
	out := append([]Floor(nil), s.Floors...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BuildingID != out[j].BuildingID {
			return out[i].BuildingID < out[j].BuildingID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RoomsOnFloor returns the active rooms of a floor.
func (s *Snapshot) RoomsOnFloor(id FloorID) []Room {
	if s == nil {
		return nil
	}
	var out []Room
	for _, r := range s.Rooms {
		if r.FloorID == id && r.IsActive {
			out = append(out, r)
		}
	}
	return out
}
