package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jason-s-yu/companion/internal/models"
	"github.com/jason-s-yu/companion/internal/relationship"
	"github.com/redis/go-redis/v9"
)

const (
	fieldVersion = "version"
	fieldRecords = "records"
)

// RelationshipStore keeps the relationship collection in one Redis hash
// holding the encoded records and their version. Apply is optimistic:
// the key is WATCHed, and EXEC aborts if anyone else wrote it first.
type RelationshipStore struct {
	rdb *redis.Client
	key string
}

func NewRelationshipStore(rdb *redis.Client, key string) *RelationshipStore {
	return &RelationshipStore{rdb: rdb, key: key}
}

func (s *RelationshipStore) Snapshot(ctx context.Context) (relationship.Collection, relationship.Version, error) {
	return s.read(ctx, s.rdb)
}

// Version reads the version field alone. A missing key is version 0.
func (s *RelationshipStore) Version(ctx context.Context) (relationship.Version, error) {
	v, err := s.rdb.HGet(ctx, s.key, fieldVersion).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read relationship version: %w", err)
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad version %q", relationship.ErrCorruptCollection, v)
	}
	return relationship.Version(n), nil
}

// read loads the hash through c, which is either the client or a WATCH transaction.
func (s *RelationshipStore) read(ctx context.Context, c redis.Cmdable) (relationship.Collection, relationship.Version, error) {
	vals, err := c.HMGet(ctx, s.key, fieldVersion, fieldRecords).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read relationship snapshot: %w", err)
	}

	var version relationship.Version
	if v, ok := vals[0].(string); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: bad version %q", relationship.ErrCorruptCollection, v)
		}
		version = relationship.Version(n)
	}
	var raw []byte
	if r, ok := vals[1].(string); ok {
		raw = []byte(r)
	}
	coll, err := relationship.DecodeCollection(raw)
	if err != nil {
		return nil, 0, err
	}
	return coll, version, nil
}

func (s *RelationshipStore) Apply(ctx context.Context, expected relationship.Version, fn relationship.MutationFunc) (relationship.Version, error) {
	var next relationship.Version
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		coll, version, err := s.read(ctx, tx)
		if err != nil {
			return err
		}
		if version != expected {
			return fmt.Errorf("%w: expected %d, at %d", relationship.ErrConflict, expected, version)
		}
		if err := fn(coll); err != nil {
			return err
		}
		data, err := relationship.EncodeCollection(coll)
		if err != nil {
			return err
		}

		next = version + 1
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.key,
				fieldVersion, strconv.FormatUint(uint64(next), 10),
				fieldRecords, data,
			)
			return nil
		})
		return err
	}, s.key)

	if errors.Is(err, redis.TxFailedErr) {
		return 0, fmt.Errorf("%w: %s changed during apply", relationship.ErrConflict, s.key)
	}
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (s *RelationshipStore) FindByPair(ctx context.Context, a, b uuid.UUID) (models.Relationship, bool, error) {
	p, err := relationship.NewPair(a, b)
	if err != nil {
		return models.Relationship{}, false, err
	}
	coll, _, err := s.Snapshot(ctx)
	if err != nil {
		return models.Relationship{}, false, err
	}
	r, ok := coll.Get(p)
	return r, ok, nil
}
