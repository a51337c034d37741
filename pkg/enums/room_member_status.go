package enums

import "fmt"

// RoomMemberStatus tracks a member's progress inside a group-buy room.
type RoomMemberStatus string

const (
	RoomMemberStatusPending   RoomMemberStatus = "PENDING"
	RoomMemberStatusOrdered   RoomMemberStatus = "ORDERED"
	RoomMemberStatusConfirmed RoomMemberStatus = "CONFIRMED"
)

var validRoomMemberStatuses = []RoomMemberStatus{
	RoomMemberStatusPending,
	RoomMemberStatusOrdered,
	RoomMemberStatusConfirmed,
}

// String implements fmt.Stringer.
func (r RoomMemberStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RoomMemberStatus.
func (r RoomMemberStatus) IsValid() bool {
	for _, candidate := range validRoomMemberStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// CountsTowardUnlock reports whether the member has a qualifying order.
func (r RoomMemberStatus) CountsTowardUnlock() bool {
	return r == RoomMemberStatusOrdered || r == RoomMemberStatusConfirmed
}

// ParseRoomMemberStatus converts raw input into a RoomMemberStatus.
func ParseRoomMemberStatus(value string) (RoomMemberStatus, error) {
	for _, candidate := range validRoomMemberStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid room member status %q", value)
}
