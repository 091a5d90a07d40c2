package domain

// Room is the physical classroom configuration the verification factors are
// scored against.
type Room struct {
	ID                   int64    `json:"id"`
	RoomID               string   `json:"room_id"`
	Building             string   `json:"building"`
	BeaconIDs            []string `json:"beacon_ids"`
	NetworkBSSID         string   `json:"network_bssid"`
	Latitude             float64  `json:"latitude"`
	Longitude            float64  `json:"longitude"`
	GeofenceRadiusMeters float64  `json:"geofence_radius_meters"`
}
