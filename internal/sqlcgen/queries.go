package sqlcgen

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const listBuildings = `-- name: ListBuildings :many
SELECT b.id,
       b.name,
       b.description
FROM buildings b
WHERE ($1::bigint IS NULL OR b.id = $1::bigint)
ORDER BY b.id ASC
`

func (q *Queries) ListBuildings(ctx context.Context, buildingID *int64) ([]Building, error) {
	rows, err := q.db.Query(ctx, listBuildings, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Building
	for rows.Next() {
		var i Building
		if err := rows.Scan(&i.ID, &i.Name, &i.Description); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listFloors = `-- name: ListFloors :many
SELECT f.id,
       f.building_id,
       f.name,
       f.description
FROM floors f
WHERE ($1::bigint IS NULL OR f.building_id = $1::bigint)
ORDER BY f.building_id ASC, f.id ASC
`

func (q *Queries) ListFloors(ctx context.Context, buildingID *int64) ([]Floor, error) {
	rows, err := q.db.Query(ctx, listFloors, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Floor
	for rows.Next() {
		var i Floor
		if err := rows.Scan(&i.ID, &i.BuildingID, &i.Name, &i.Description); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRooms = `-- name: ListRooms :many
SELECT r.id,
       r.floor_id,
       r.name,
       r.capacity,
       r.type,
       r.is_active
FROM rooms r
JOIN floors f ON f.id = r.floor_id
WHERE ($1::bigint IS NULL OR f.building_id = $1::bigint)
ORDER BY r.id ASC
`

func (q *Queries) ListRooms(ctx context.Context, buildingID *int64) ([]Room, error) {
	rows, err := q.db.Query(ctx, listRooms, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Room
	for rows.Next() {
		var i Room
		if err := rows.Scan(
			&i.ID,
			&i.FloorID,
			&i.Name,
			&i.Capacity,
			&i.Type,
			&i.IsActive,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRoomAccesspoints = `-- name: ListRoomAccesspoints :many
SELECT ra.room_id,
       ra.accesspoint_id
FROM room_accesspoints ra
JOIN rooms r ON r.id = ra.room_id
JOIN floors f ON f.id = r.floor_id
WHERE ($1::bigint IS NULL OR f.building_id = $1::bigint)
ORDER BY ra.room_id ASC, ra.accesspoint_id ASC
`

func (q *Queries) ListRoomAccesspoints(ctx context.Context, buildingID *int64) ([]RoomAccesspoint, error) {
	rows, err := q.db.Query(ctx, listRoomAccesspoints, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RoomAccesspoint
	for rows.Next() {
		var i RoomAccesspoint
		if err := rows.Scan(&i.RoomID, &i.AccesspointID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listAccessPoints = `-- name: ListAccessPoints :many
SELECT a.id,
       a.name,
       a.mac,
       a.ip_address,
       a.description,
       a.connected_devices,
       a.ap_group,
       a.status,
       a.model,
       a.sw_version,
       a.channel,
       a.band,
       a.uptime
FROM access_points a
ORDER BY a.id ASC
`

func (q *Queries) ListAccessPoints(ctx context.Context) ([]AccessPoint, error) {
	rows, err := q.db.Query(ctx, listAccessPoints)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []AccessPoint
	for rows.Next() {
		var i AccessPoint
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.MAC,
			&i.IPAddress,
			&i.Description,
			&i.ConnectedDevices,
			&i.ApGroup,
			&i.Status,
			&i.Model,
			&i.SWVersion,
			&i.Channel,
			&i.Band,
			&i.Uptime,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
