package domain

import "github.com/google/uuid"

type RoomID string

// NewRoomID returns a fresh opaque call identifier.
func NewRoomID() RoomID {
	return RoomID(uuid.NewString())
}
