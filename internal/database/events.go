package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/companion/internal/models"
)

// InsertRelationshipEvents writes a batch of audit events in one transaction.
func InsertRelationshipEvents(ctx context.Context, pool *pgxpool.Pool, events []models.RelationshipEvent) error {
	if len(events) == 0 {
		return nil
	}
	q := `
		INSERT INTO relationship_events (
			relationship_id, op, actor_id, peer_id, status, version, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, ev := range events {
			batch.Queue(q,
				ev.RelationshipID, ev.Op, ev.ActorID, ev.PeerID,
				string(ev.Status), int64(ev.Version), time.UnixMilli(ev.Timestamp),
			)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range events {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to insert relationship event %d: %w", i, err)
			}
		}
		return br.Close()
	})
}
