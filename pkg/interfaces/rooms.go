package interfaces

import (
	"context"
	"errors"
)

// Event types consumed from the room graph.
const (
	EventTypeMeta       = "dev.medienhaus.meta"
	EventTypeRoomName   = "m.room.name"
	EventTypeJoinRules  = "m.room.join_rules"
	EventTypeAvatar     = "m.room.avatar"
	EventTypeSpaceChild = "m.space.child"
	EventTypeMessage    = "m.room.message"
)

var (
	// ErrEventNotFound reports that a state event is not set on the room.
	ErrEventNotFound = errors.New("rooms: state event not found")
	// ErrRoomUnavailable reports that the room could not be read (unknown, forbidden or unreachable).
	ErrRoomUnavailable = errors.New("rooms: room unavailable")
)

// StateEvent is a single entry of a room's current state.
type StateEvent struct {
	Type     string         `json:"type"`
	StateKey string         `json:"state_key"`
	RoomID   string         `json:"room_id"`
	Sender   string         `json:"sender"`
	Content  map[string]any `json:"content"`
}

// Member describes a joined room member.
type Member struct {
	UserID      string
	DisplayName string
	AvatarURL   string
}

// HierarchyRoom is one entry of a space hierarchy listing.
type HierarchyRoom struct {
	RoomID    string `json:"room_id"`
	Name      string `json:"name"`
	Topic     string `json:"topic,omitempty"`
	RoomType  string `json:"room_type,omitempty"`
	JoinRule  string `json:"join_rule,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// HierarchyOptions bounds a hierarchy listing.
type HierarchyOptions struct {
	MaxDepth int
	Limit    int
}

// RoomGraphClient is the read-only accessor for remote space/room state.
type RoomGraphClient interface {
	// RoomState returns the full current state of the room.
	RoomState(ctx context.Context, roomID string) ([]StateEvent, error)
	// StateEvent returns the content of a single state event. ErrEventNotFound is
	// returned when the event is not set.
	StateEvent(ctx context.Context, roomID, eventType, stateKey string) (map[string]any, error)
	// JoinedMembers lists the current members of the room.
	JoinedMembers(ctx context.Context, roomID string) ([]Member, error)
	// MediaURL converts a media reference (mxc://) into a retrievable URL.
	MediaURL(ref string) string
	// Hierarchy lists the rooms below roomID, bounded by opts.
	Hierarchy(ctx context.Context, roomID string, opts HierarchyOptions) ([]HierarchyRoom, error)
	// Children lists the immediate children of roomID, excluding roomID itself.
	Children(ctx context.Context, roomID string) ([]HierarchyRoom, error)
}
