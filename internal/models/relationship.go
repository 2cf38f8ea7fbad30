package models

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipStatus is the state of a pair of users. Only StatusRequested
// and StatusFriends are ever persisted; a missing record is StatusNone.
type RelationshipStatus string

const (
	StatusNone      RelationshipStatus = "none"
	StatusRequested RelationshipStatus = "requested"
	StatusFriends   RelationshipStatus = "friends"
)

// Relationship is a single record per unordered pair of users.
// UserLow always sorts before UserHigh.
type Relationship struct {
	ID       uuid.UUID          `json:"id"`
	UserLow  uuid.UUID          `json:"user_low"`
	UserHigh uuid.UUID          `json:"user_high"`
	Status   RelationshipStatus `json:"status"`

	// RequesterID is who sent the pending request. uuid.Nil once friends.
	RequesterID uuid.UUID `json:"requester_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Involves reports whether userID is one of the two participants.
func (r Relationship) Involves(userID uuid.UUID) bool {
	return r.UserLow == userID || r.UserHigh == userID
}

// Peer returns the participant that is not userID.
func (r Relationship) Peer(userID uuid.UUID) uuid.UUID {
	if r.UserLow == userID {
		return r.UserHigh
	}
	return r.UserLow
}

// RelationshipEvent is pushed to the audit queue after every successful transition.
type RelationshipEvent struct {
	RelationshipID uuid.UUID          `json:"relationship_id"`
	Op             string             `json:"op"` // 'request', 'accept', 'reject', 'cancel', 'unfriend'
	ActorID        uuid.UUID          `json:"actor_id"`
	PeerID         uuid.UUID          `json:"peer_id"`
	Status         RelationshipStatus `json:"status"`
	Version        uint64             `json:"version"`
	Timestamp      int64              `json:"timestamp"` // epoch millis
}
