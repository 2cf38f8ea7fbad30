package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/companion/internal/models"
	"github.com/jason-s-yu/companion/internal/relationship"
)

const snapshotRow = 1

// ErrSnapshotMissing means EnsureSchema was never run against this database.
var ErrSnapshotMissing = errors.New("relationship snapshot row missing")

// RelationshipStore persists the relationship collection as a single JSONB
// document with a version counter. Apply locks the row for the duration of
// its transaction, so writers on other instances serialize behind it.
type RelationshipStore struct {
	pool *pgxpool.Pool
}

func NewRelationshipStore(pool *pgxpool.Pool) *RelationshipStore {
	return &RelationshipStore{pool: pool}
}

// Snapshot reads the current document without locking.
func (s *RelationshipStore) Snapshot(ctx context.Context) (relationship.Collection, relationship.Version, error) {
	var (
		version int64
		raw     []byte
	)
	q := `SELECT version, records FROM relationship_snapshot WHERE id = $1`
	err := s.pool.QueryRow(ctx, q, snapshotRow).Scan(&version, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, ErrSnapshotMissing
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read relationship snapshot: %w", err)
	}
	c, err := relationship.DecodeCollection(raw)
	if err != nil {
		return nil, 0, err
	}
	return c, relationship.Version(version), nil
}

// Version reads only the version column.
func (s *RelationshipStore) Version(ctx context.Context) (relationship.Version, error) {
	var version int64
	err := s.pool.QueryRow(ctx, `SELECT version FROM relationship_snapshot WHERE id = $1`, snapshotRow).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrSnapshotMissing
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read relationship version: %w", err)
	}
	return relationship.Version(version), nil
}

// Apply re-reads the document under FOR UPDATE, compares versions, runs fn
// and writes the whole document back in the same transaction.
func (s *RelationshipStore) Apply(ctx context.Context, expected relationship.Version, fn relationship.MutationFunc) (relationship.Version, error) {
	var next relationship.Version
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var (
			version int64
			raw     []byte
		)
		q := `SELECT version, records FROM relationship_snapshot WHERE id = $1 FOR UPDATE`
		err := tx.QueryRow(ctx, q, snapshotRow).Scan(&version, &raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSnapshotMissing
		}
		if err != nil {
			return fmt.Errorf("failed to lock relationship snapshot: %w", err)
		}
		if relationship.Version(version) != expected {
			return fmt.Errorf("%w: expected %d, at %d", relationship.ErrConflict, expected, version)
		}

		c, err := relationship.DecodeCollection(raw)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		data, err := relationship.EncodeCollection(c)
		if err != nil {
			return err
		}

		u := `
			UPDATE relationship_snapshot
			SET version = $2, records = $3::jsonb, updated_at = NOW()
			WHERE id = $1 AND version = $4
		`
		ct, err := tx.Exec(ctx, u, snapshotRow, version+1, string(data), version)
		if err != nil {
			return fmt.Errorf("failed to write relationship snapshot: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("%w: snapshot moved during write", relationship.ErrConflict)
		}
		next = relationship.Version(version + 1)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// FindByPair searches the document server side for the canonical pair.
func (s *RelationshipStore) FindByPair(ctx context.Context, a, b uuid.UUID) (models.Relationship, bool, error) {
	p, err := relationship.NewPair(a, b)
	if err != nil {
		return models.Relationship{}, false, err
	}
	q := `
		SELECT elem
		FROM relationship_snapshot, jsonb_array_elements(records) AS elem
		WHERE id = $1 AND elem->>'user_low' = $2 AND elem->>'user_high' = $3
	`
	var r models.Relationship
	err = s.pool.QueryRow(ctx, q, snapshotRow, p.Low.String(), p.High.String()).Scan(&r)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Relationship{}, false, nil
	}
	if err != nil {
		return models.Relationship{}, false, fmt.Errorf("failed to find relationship %s: %w", p, err)
	}
	return r, true, nil
}
