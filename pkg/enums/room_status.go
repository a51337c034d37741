package enums

import "fmt"

// RoomStatus tracks a group-buy room through its unlock window.
type RoomStatus string

const (
	RoomStatusActive   RoomStatus = "ACTIVE"
	RoomStatusLocked   RoomStatus = "LOCKED"
	RoomStatusUnlocked RoomStatus = "UNLOCKED"
	RoomStatusExpired  RoomStatus = "EXPIRED"
)

var validRoomStatuses = []RoomStatus{
	RoomStatusActive,
	RoomStatusLocked,
	RoomStatusUnlocked,
	RoomStatusExpired,
}

// String implements fmt.Stringer.
func (r RoomStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RoomStatus.
func (r RoomStatus) IsValid() bool {
	for _, candidate := range validRoomStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// AcceptsMembers reports whether new joins and order links are allowed.
func (r RoomStatus) AcceptsMembers() bool {
	return r == RoomStatusActive || r == RoomStatusLocked
}

// ParseRoomStatus converts raw input into a RoomStatus.
func ParseRoomStatus(value string) (RoomStatus, error) {
	for _, candidate := range validRoomStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid room status %q", value)
}
