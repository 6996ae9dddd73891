// Package view shapes refresh results into the JSON documents served over
// HTTP and published to Redis.
package view

import (
	"time"

	"roomload/core-go/internal/occupancy"
	"roomload/core-go/internal/poller"
	"roomload/core-go/internal/registry"
)

type Rect struct {
	RoomID    int64   `json:"room_id"`
	Room      string  `json:"room"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Tier      string  `json:"tier"`
	Color     string  `json:"color"`
	Occupancy int     `json:"occupancy"`
}

// Overlay is everything needed to paint one floor plan.
type Overlay struct {
	FloorID         int64           `json:"floor_id"`
	Floor           string          `json:"floor"`
	BuildingID      int64           `json:"building_id"`
	Canvas          registry.Canvas `json:"canvas"`
	Rects           []Rect          `json:"rects"`
	UnplacedRoomIDs []int64         `json:"unplaced_room_ids"`
	RefreshSeq      uint64          `json:"refresh_seq"`
	RefreshedAt     time.Time       `json:"refreshed_at"`
}

type FloorSummary struct {
	ID         int64          `json:"id"`
	BuildingID int64          `json:"building_id"`
	Label      string         `json:"label"`
	HasPlan    bool           `json:"has_plan"`
	Rooms      int            `json:"rooms"`
	Placed     int            `json:"placed"`
	Unplaced   int            `json:"unplaced"`
	Tiers      map[string]int `json:"tiers"`
}

type Floors struct {
	RefreshSeq  uint64         `json:"refresh_seq"`
	RefreshedAt time.Time      `json:"refreshed_at"`
	Floors      []FloorSummary `json:"floors"`
}

type Room struct {
	RoomID    int64  `json:"room_id"`
	Room      string `json:"room"`
	Occupancy int    `json:"occupancy"`
	Tier      string `json:"tier"`
	Color     string `json:"color"`
	Capacity  int    `json:"capacity"`
	Type      string `json:"type,omitempty"`
	Placed    bool   `json:"placed"`
}

type Rooms struct {
	FloorID     int64     `json:"floor_id"`
	Floor       string    `json:"floor"`
	Rooms       []Room    `json:"rooms"`
	RefreshSeq  uint64    `json:"refresh_seq"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// PlanLookup reports whether a floor label has a floor plan.
type PlanLookup interface {
	HasFloor(label string) bool
	Canvas() registry.Canvas
}

func NewOverlay(res *poller.Result, f occupancy.FloorOverlay, plans PlanLookup) Overlay {
	out := Overlay{
		FloorID:         int64(f.Floor.ID),
		Floor:           f.Floor.Name,
		BuildingID:      int64(f.Floor.BuildingID),
		Rects:           make([]Rect, 0, len(f.Rects)),
		UnplacedRoomIDs: make([]int64, 0, len(f.Unplaced)),
	}
	if plans != nil {
		out.Canvas = plans.Canvas()
	}
	if res != nil {
		out.RefreshSeq = res.Seq
		out.RefreshedAt = res.StartedAt.UTC()
	}
	for _, r := range f.Rects {
		out.Rects = append(out.Rects, Rect{
			RoomID:    int64(r.RoomID),
			Room:      r.Room,
			X:         r.X,
			Y:         r.Y,
			Width:     r.Width,
			Height:    r.Height,
			Tier:      r.Tier.String(),
			Color:     r.Tier.Color().CSS(),
			Occupancy: r.Occupancy,
		})
	}
	for _, id := range f.Unplaced {
		out.UnplacedRoomIDs = append(out.UnplacedRoomIDs, int64(id))
	}
	return out
}

func NewFloors(res *poller.Result, plans PlanLookup) Floors {
	out := Floors{Floors: []FloorSummary{}}
	if res == nil {
		return out
	}
	out.RefreshSeq = res.Seq
	out.RefreshedAt = res.StartedAt.UTC()
	out.Floors = make([]FloorSummary, 0, len(res.Floors))
	for _, f := range res.Floors {
		tiers := make(map[string]int, 3)
		for tier, n := range f.TierCounts() {
			tiers[tier.String()] = n
		}
		out.Floors = append(out.Floors, FloorSummary{
			ID:         int64(f.Floor.ID),
			BuildingID: int64(f.Floor.BuildingID),
			Label:      f.Floor.Name,
			HasPlan:    plans != nil && plans.HasFloor(f.Floor.Name),
			Rooms:      len(f.Rooms),
			Placed:     len(f.Rects),
			Unplaced:   len(f.Unplaced),
			Tiers:      tiers,
		})
	}
	return out
}

func NewRooms(res *poller.Result, f occupancy.FloorOverlay) Rooms {
	out := Rooms{
		FloorID: int64(f.Floor.ID),
		Floor:   f.Floor.Name,
		Rooms:   make([]Room, 0, len(f.Rooms)),
	}
	if res != nil {
		out.RefreshSeq = res.Seq
		out.RefreshedAt = res.StartedAt.UTC()
	}
	for _, r := range f.Rooms {
		out.Rooms = append(out.Rooms, Room{
			RoomID:    int64(r.Room.ID),
			Room:      r.Room.Name,
			Occupancy: r.Occupancy,
			Tier:      r.Tier.String(),
			Color:     r.Tier.Color().CSS(),
			Capacity:  r.Room.Capacity,
			Type:      r.Room.Type,
			Placed:    r.Placed,
		})
	}
	return out
}
