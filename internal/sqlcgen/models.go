package sqlcgen

type Building struct {
	ID          int64
	Name        string
	Description *string
}

type Floor struct {
	ID          int64
	BuildingID  int64
	Name        string
	Description *string
}

type Room struct {
	ID       int64
	FloorID  int64
	Name     string
	Capacity *int32
	Type     *string
	IsActive bool
}

type AccessPoint struct {
	ID               int64
	Name             *string
	MAC              *string
	IPAddress        *string
	Description      *string
	ConnectedDevices *int32
	ApGroup          *string
	Status           *string
	Model            *string
	SWVersion        *string
	Channel          *string
	Band             *string
	Uptime           *string
}

type RoomAccesspoint struct {
	RoomID        int64
	AccesspointID int64
}
