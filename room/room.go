package room

import (
	"fmt"
	"sync"
	"time"

	"landlord-server/game"
)

// Status is the lifecycle status of a Room.
type Status int

const (
	StatusWaiting Status = iota
	StatusPlaying
	StatusFinished
)

// String returns the protocol string for a Status.
func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusPlaying:
		return "playing"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by its protocol string.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a protocol string produced by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	for _, v := range []Status{StatusWaiting, StatusPlaying, StatusFinished} {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown room status %q", text)
}

// Capacity bounds for a room. A game always needs exactly game.SeatCount players.
const (
	MinCapacity = 2
	MaxCapacity = 4
)

// Identity is an authenticated user.
type Identity struct {
	UserID string
	Name   string
}

// Settings are the creator-chosen options of a room.
type Settings struct {
	Private          bool
	TurnTimeLimitSec int
}

// Member is one occupant of a room, in join order.
type Member struct {
	UserID string
	Name   string
	Ready  bool
	Online bool
}

// Room is a lobby for up to Capacity members that hosts at most one live
// game session. All fields are guarded by mu; the Coordinator is the only
// writer.
type Room struct {
	mu sync.Mutex

	ID        string
	Name      string
	Capacity  int
	CreatorID string
	Settings  Settings
	Status    Status
	Members   []*Member
	CreatedAt time.Time

	session     *game.Session
	lastSession *game.Session
	turnTimer   *time.Timer
	removed     bool
}

// Session returns the live session, or nil.
func (r *Room) Session() *game.Session {
	return r.session
}

// LatestSession returns the live session, or the last finished one.
func (r *Room) LatestSession() *game.Session {
	if r.session != nil {
		return r.session
	}
	return r.lastSession
}

func (r *Room) member(userID string) (*Member, int) {
	for i, m := range r.Members {
		if m.UserID == userID {
			return m, i
		}
	}
	return nil, -1
}

// IsMember reports whether userID occupies a seat in the room.
func (r *Room) IsMember(userID string) bool {
	m, _ := r.member(userID)
	return m != nil
}

// MemberIDs returns member user IDs in join order.
func (r *Room) MemberIDs() []string {
	ids := make([]string, len(r.Members))
	for i, m := range r.Members {
		ids[i] = m.UserID
	}
	return ids
}

func (r *Room) full() bool {
	return len(r.Members) >= r.Capacity
}

func (r *Room) allReady() bool {
	for _, m := range r.Members {
		if !m.Ready {
			return false
		}
	}
	return true
}

// MemberView is the public representation of a member.
type MemberView struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Online bool   `json:"online"`
}

// View is the public representation of a room. It is safe to send to anyone.
type View struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Capacity         int          `json:"capacity"`
	Status           Status       `json:"status"`
	CreatorID        string       `json:"creatorId"`
	IsPrivate        bool         `json:"isPrivate"`
	TurnTimeLimitSec int          `json:"turnTimeLimitSec"`
	Members          []MemberView `json:"members"`
	SessionID        string       `json:"sessionId,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// BuildView snapshots the room. The caller must hold the room lock.
func BuildView(r *Room) View {
	v := View{
		ID:               r.ID,
		Name:             r.Name,
		Capacity:         r.Capacity,
		Status:           r.Status,
		CreatorID:        r.CreatorID,
		IsPrivate:        r.Settings.Private,
		TurnTimeLimitSec: r.Settings.TurnTimeLimitSec,
		Members:          make([]MemberView, 0, len(r.Members)),
		CreatedAt:        r.CreatedAt,
	}
	for _, m := range r.Members {
		v.Members = append(v.Members, MemberView{UserID: m.UserID, Name: m.Name, Ready: m.Ready, Online: m.Online})
	}
	if s := r.LatestSession(); s != nil {
		v.SessionID = s.ID
	}
	return v
}
