package relationship

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jason-s-yu/companion/internal/models"
)

// Collection is the full set of relationship records keyed by canonical pair.
// Stores hand mutation functions a private copy, never the live value.
type Collection map[Pair]models.Relationship

// NewCollection builds a Collection from persisted records, verifying that
// every record is canonical, that no pair appears twice and that pending
// records name one of their participants as requester.
func NewCollection(records []models.Relationship) (Collection, error) {
	c := make(Collection, len(records))
	for _, r := range records {
		if err := validate(r); err != nil {
			return nil, err
		}
		p := PairOf(r)
		if _, dup := c[p]; dup {
			return nil, fmt.Errorf("%w: duplicate pair %s", ErrCorruptCollection, p)
		}
		c[p] = r
	}
	return c, nil
}

func validate(r models.Relationship) error {
	if bytes.Compare(r.UserLow[:], r.UserHigh[:]) >= 0 {
		return fmt.Errorf("%w: record %v is not canonically ordered", ErrCorruptCollection, r.ID)
	}
	switch r.Status {
	case models.StatusRequested:
		if r.RequesterID != r.UserLow && r.RequesterID != r.UserHigh {
			return fmt.Errorf("%w: record %v requester %v is not a participant", ErrCorruptCollection, r.ID, r.RequesterID)
		}
	case models.StatusFriends:
	default:
		return fmt.Errorf("%w: record %v has status %q", ErrCorruptCollection, r.ID, r.Status)
	}
	return nil
}

// Get looks up the record for p.
func (c Collection) Get(p Pair) (models.Relationship, bool) {
	r, ok := c[p]
	return r, ok
}

// Put inserts or replaces the record under its own pair.
func (c Collection) Put(r models.Relationship) {
	c[PairOf(r)] = r
}

// Delete removes the record for p. Removing a missing pair is a no-op.
func (c Collection) Delete(p Pair) {
	delete(c, p)
}

// Clone returns an independent copy. Relationship holds no reference
// fields, so a shallow copy of the values is enough.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Records returns the records ordered by pair, for stable serialization.
func (c Collection) Records() []models.Relationship {
	out := make([]models.Relationship, 0, len(c))
	for _, r := range c {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if d := bytes.Compare(out[i].UserLow[:], out[j].UserLow[:]); d != 0 {
			return d < 0
		}
		return bytes.Compare(out[i].UserHigh[:], out[j].UserHigh[:]) < 0
	})
	return out
}

// EncodeCollection serializes c as a JSON array of records.
func EncodeCollection(c Collection) ([]byte, error) {
	data, err := json.Marshal(c.Records())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal relationships: %w", err)
	}
	return data, nil
}

// DecodeCollection parses the output of EncodeCollection. Empty input is an
// empty collection.
func DecodeCollection(data []byte) (Collection, error) {
	if len(data) == 0 {
		return make(Collection), nil
	}
	var records []models.Relationship
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCollection, err)
	}
	return NewCollection(records)
}
