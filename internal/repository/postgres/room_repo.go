package postgres

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/smartattend/backend/internal/domain"
)

type RoomRepo struct {
	DB *sql.DB
}

func NewRoomRepo(db *sql.DB) *RoomRepo {
	return &RoomRepo{DB: db}
}

// GetRoomByID resolves a room's physical configuration.
func (r *RoomRepo) GetRoomByID(roomID string) (*domain.Room, error) {
	query := `
	SELECT id, room_id, building, beacon_ids, network_bssid,
	       latitude, longitude, geofence_radius_meters
	FROM rooms
	WHERE room_id = $1;
	`
	var room domain.Room
	err := r.DB.QueryRow(query, roomID).Scan(
		&room.ID, &room.RoomID, &room.Building, pq.Array(&room.BeaconIDs),
		&room.NetworkBSSID, &room.Latitude, &room.Longitude, &room.GeofenceRadiusMeters,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("room %s not found", roomID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %v", err)
	}
	return &room, nil
}

// ListRooms returns every configured room.
func (r *RoomRepo) ListRooms() ([]domain.Room, error) {
	query := `
	SELECT id, room_id, building, beacon_ids, network_bssid,
	       latitude, longitude, geofence_radius_meters
	FROM rooms
	ORDER BY room_id;
	`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %v", err)
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		var room domain.Room
		if err := rows.Scan(
			&room.ID, &room.RoomID, &room.Building, pq.Array(&room.BeaconIDs),
			&room.NetworkBSSID, &room.Latitude, &room.Longitude, &room.GeofenceRadiusMeters,
		); err != nil {
			return nil, fmt.Errorf("failed to scan room row: %v", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate room rows: %v", err)
	}
	return rooms, nil
}
