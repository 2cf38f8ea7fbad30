package relationship

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/companion/internal/models"
	"github.com/sirupsen/logrus"
)

// Buckets is the raw partition of the records touching one user.
type Buckets struct {
	Friends  []models.Relationship
	Incoming []models.Relationship // others waiting on this user
	Outgoing []models.Relationship // this user waiting on others
}

// Partition splits c into the three views of userID. Every record touching
// userID lands in exactly one bucket.
func Partition(userID uuid.UUID, c Collection) Buckets {
	var b Buckets
	for _, r := range c {
		if !r.Involves(userID) {
			continue
		}
		switch {
		case r.Status == models.StatusFriends:
			b.Friends = append(b.Friends, r)
		case r.RequesterID == userID:
			b.Outgoing = append(b.Outgoing, r)
		default:
			b.Incoming = append(b.Incoming, r)
		}
	}
	return b
}

// Entry is one row of a user's relationship listing.
type Entry struct {
	RelationshipID uuid.UUID                 `json:"relationship_id"`
	Peer           models.PublicUser         `json:"peer"`
	Status         models.RelationshipStatus `json:"status"`
	Since          time.Time                 `json:"since"`
}

// View is what a user sees: confirmed friends, requests awaiting their
// decision and requests they are waiting on.
type View struct {
	Friends  []Entry `json:"friends"`
	Incoming []Entry `json:"incoming"`
	Outgoing []Entry `json:"outgoing"`
}

// ListForUser derives the view of userID from a fresh snapshot and resolves
// each peer's public identity. Nothing about the view is cached.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) (*View, error) {
	const op = "list"
	if err := s.ensureUsers(ctx, userID); err != nil {
		return nil, s.finish(op, err)
	}
	c, _, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, s.finish(op, fmt.Errorf("failed to read relationship snapshot: %w", err))
	}
	b := Partition(userID, c)

	var peers []uuid.UUID
	for _, bucket := range [][]models.Relationship{b.Friends, b.Incoming, b.Outgoing} {
		for _, r := range bucket {
			peers = append(peers, r.Peer(userID))
		}
	}
	known, err := s.users.Lookup(ctx, peers)
	if err != nil {
		return nil, s.finish(op, fmt.Errorf("failed to resolve peers: %w", err))
	}

	toEntries := func(rs []models.Relationship) []Entry {
		out := make([]Entry, 0, len(rs))
		for _, r := range rs {
			peerID := r.Peer(userID)
			peer, ok := known[peerID]
			if !ok {
				s.log.WithFields(logrus.Fields{
					"user": userID,
					"peer": peerID,
				}).Warn("relationship peer missing from user directory")
				peer = models.PublicUser{ID: peerID}
			}
			out = append(out, Entry{
				RelationshipID: r.ID,
				Peer:           peer,
				Status:         r.Status,
				Since:          r.UpdatedAt,
			})
		}
		sortEntries(out)
		return out
	}

	v := &View{
		Friends:  toEntries(b.Friends),
		Incoming: toEntries(b.Incoming),
		Outgoing: toEntries(b.Outgoing),
	}
	return v, s.finish(op, nil)
}

// sortEntries orders newest first, then by peer id.
func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		if !es[i].Since.Equal(es[j].Since) {
			return es[i].Since.After(es[j].Since)
		}
		return bytes.Compare(es[i].Peer.ID[:], es[j].Peer.ID[:]) < 0
	})
}
