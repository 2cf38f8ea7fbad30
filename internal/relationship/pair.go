package relationship

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/companion/internal/models"
)

// Pair is the canonical key of an unordered pair of users: Low sorts
// strictly before High, so (a, b) and (b, a) produce the same Pair.
type Pair struct {
	Low  uuid.UUID
	High uuid.UUID
}

// NewPair canonicalizes two user ids. Equal ids are rejected.
func NewPair(a, b uuid.UUID) (Pair, error) {
	switch c := bytes.Compare(a[:], b[:]); {
	case c < 0:
		return Pair{Low: a, High: b}, nil
	case c > 0:
		return Pair{Low: b, High: a}, nil
	default:
		return Pair{}, fmt.Errorf("%w: %v", ErrInvalidSelfRequest, a)
	}
}

// PairOf returns the key of a stored record.
func PairOf(r models.Relationship) Pair {
	return Pair{Low: r.UserLow, High: r.UserHigh}
}

// Has reports whether id is one of the pair's members.
func (p Pair) Has(id uuid.UUID) bool {
	return p.Low == id || p.High == id
}

func (p Pair) String() string {
	return p.Low.String() + ":" + p.High.String()
}
