// Package testsupport provides an in-memory room graph used by package tests.
package testsupport

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

// MediaBaseURL prefixes resolved media references.
const MediaBaseURL = "https://media.test/"

// Room describes one node of the fake graph. Empty fields produce no state event.
type Room struct {
	ID         string
	Name       string
	Topic      string
	Meta       map[string]any
	JoinRule   string
	Avatar     string
	Members    []interfaces.Member
	Children   []string
	Messages   []interfaces.Message
	ExtraState []interfaces.StateEvent

	StateErr    error
	MessagesErr error
	Delay       time.Duration
}

var (
	_ interfaces.RoomGraphClient      = (*Graph)(nil)
	_ interfaces.MessageHistoryClient = (*Graph)(nil)
)

// Graph implements RoomGraphClient and MessageHistoryClient over Rooms.
type Graph struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	calls   map[string]int
	queries []MessageCall
}

// MessageCall records a Messages invocation.
type MessageCall struct {
	RoomID string
	Query  interfaces.MessageQuery
}

// NewGraph builds a graph from rooms.
func NewGraph(rooms ...Room) *Graph {
	g := &Graph{rooms: map[string]*Room{}, calls: map[string]int{}}
	for _, room := range rooms {
		g.Add(room)
	}
	return g
}

// Add registers or replaces a room.
func (g *Graph) Add(room Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	stored := room
	g.rooms[room.ID] = &stored
}

// Update mutates a stored room in place.
func (g *Graph) Update(id string, fn func(*Room)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if room, ok := g.rooms[id]; ok {
		fn(room)
	}
}

// StateCalls returns how often RoomState was requested for id.
func (g *Graph) StateCalls(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[id]
}

// MessageCalls returns the recorded Messages invocations.
func (g *Graph) MessageCalls() []MessageCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.queries)
}

func (g *Graph) room(id string) (*Room, error) {
	room, ok := g.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrRoomUnavailable, id)
	}
	return room, nil
}

// RoomState implements interfaces.RoomGraphClient.
func (g *Graph) RoomState(ctx context.Context, roomID string) ([]interfaces.StateEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[roomID]++
	room, err := g.room(roomID)
	if err != nil {
		return nil, err
	}
	if room.StateErr != nil {
		return nil, room.StateErr
	}
	return stateOf(room), nil
}

// StateEvent implements interfaces.RoomGraphClient.
func (g *Graph) StateEvent(ctx context.Context, roomID, eventType, stateKey string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	room, err := g.room(roomID)
	if err != nil {
		return nil, err
	}
	if room.StateErr != nil {
		return nil, room.StateErr
	}
	for _, event := range stateOf(room) {
		if event.Type == eventType && event.StateKey == stateKey {
			return event.Content, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s", interfaces.ErrEventNotFound, roomID, eventType)
}

// JoinedMembers implements interfaces.RoomGraphClient.
func (g *Graph) JoinedMembers(ctx context.Context, roomID string) ([]interfaces.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	room, err := g.room(roomID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(room.Members), nil
}

// MediaURL implements interfaces.RoomGraphClient.
func (g *Graph) MediaURL(ref string) string {
	if !strings.HasPrefix(ref, "mxc://") {
		return ref
	}
	return MediaBaseURL + strings.TrimPrefix(ref, "mxc://")
}

// Hierarchy implements interfaces.RoomGraphClient with a breadth-first walk.
func (g *Graph) Hierarchy(ctx context.Context, roomID string, opts interfaces.HierarchyOptions) ([]interfaces.HierarchyRoom, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	root, err := g.room(roomID)
	if err != nil {
		return nil, err
	}

	type entry struct {
		room  *Room
		depth int
	}
	seen := map[string]struct{}{root.ID: {}}
	queue := []entry{{room: root}}
	var out []interfaces.HierarchyRoom
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		out = append(out, summary(current.room))
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		if opts.MaxDepth > 0 && current.depth >= opts.MaxDepth {
			continue
		}
		for _, childID := range current.room.Children {
			if _, ok := seen[childID]; ok {
				continue
			}
			child, ok := g.rooms[childID]
			if !ok {
				continue
			}
			seen[childID] = struct{}{}
			queue = append(queue, entry{room: child, depth: current.depth + 1})
		}
	}
	return out, nil
}

// Children implements interfaces.RoomGraphClient.
func (g *Graph) Children(ctx context.Context, roomID string) ([]interfaces.HierarchyRoom, error) {
	rooms, err := g.Hierarchy(ctx, roomID, interfaces.HierarchyOptions{MaxDepth: 1})
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(rooms, func(room interfaces.HierarchyRoom) bool { return room.RoomID == roomID }), nil
}

// Messages implements interfaces.MessageHistoryClient. Room messages are
// stored newest first.
func (g *Graph) Messages(ctx context.Context, roomID string, query interfaces.MessageQuery) ([]interfaces.Message, error) {
	g.mu.Lock()
	g.queries = append(g.queries, MessageCall{RoomID: roomID, Query: query})
	room, err := g.room(roomID)
	var delay time.Duration
	if room != nil {
		delay = room.Delay
	}
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if room.MessagesErr != nil {
		return nil, room.MessagesErr
	}
	var out []interfaces.Message
	for _, message := range room.Messages {
		if len(query.Types) > 0 && !slices.Contains(query.Types, message.Type) {
			continue
		}
		out = append(out, message)
		if query.Limit > 0 && len(out) >= query.Limit {
			break
		}
	}
	return out, nil
}

func stateOf(room *Room) []interfaces.StateEvent {
	var events []interfaces.StateEvent
	add := func(eventType, stateKey string, content map[string]any) {
		events = append(events, interfaces.StateEvent{Type: eventType, StateKey: stateKey, RoomID: room.ID, Content: content})
	}
	if room.Meta != nil {
		add(interfaces.EventTypeMeta, "", room.Meta)
	}
	if room.Name != "" {
		add(interfaces.EventTypeRoomName, "", map[string]any{"name": room.Name})
	}
	if room.JoinRule != "" {
		add(interfaces.EventTypeJoinRules, "", map[string]any{"join_rule": room.JoinRule})
	}
	if room.Avatar != "" {
		add(interfaces.EventTypeAvatar, "", map[string]any{"url": room.Avatar})
	}
	for _, child := range room.Children {
		add(interfaces.EventTypeSpaceChild, child, map[string]any{"via": []any{"example.org"}})
	}
	events = append(events, room.ExtraState...)
	return events
}

func summary(room *Room) interfaces.HierarchyRoom {
	return interfaces.HierarchyRoom{
		RoomID:   room.ID,
		Name:     room.Name,
		Topic:    room.Topic,
		JoinRule: room.JoinRule,
	}
}

// TextMessage builds an m.room.message with a plain and formatted body.
func TextMessage(eventID, body, formatted string) interfaces.Message {
	content := map[string]any{"msgtype": "m.text", "body": body}
	if formatted != "" {
		content["format"] = "org.matrix.custom.html"
		content["formatted_body"] = formatted
	}
	return interfaces.Message{EventID: eventID, Type: interfaces.EventTypeMessage, Content: content}
}

// MediaMessage builds an m.room.message referencing uploaded media.
func MediaMessage(eventID, msgtype, body, mxc string) interfaces.Message {
	return interfaces.Message{
		EventID: eventID,
		Type:    interfaces.EventTypeMessage,
		Content: map[string]any{"msgtype": msgtype, "body": body, "url": mxc},
	}
}

// ErrUnreachable is a convenience error for rooms whose state cannot be read.
var ErrUnreachable = errors.New("testsupport: unreachable")
