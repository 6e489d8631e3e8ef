package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/repository"
	"helpdesk/pkg/errors"
	"helpdesk/pkg/logger"
)

const (
	uniqueViolation   = "23505"
	maxAppendAttempts = 3
)

type postgresConversationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresConversationRepository stores each ledger entry as a row keyed by
// (conversation_id, seq). seq preserves insertion order across instances.
func NewPostgresConversationRepository(pool *pgxpool.Pool) repository.ConversationRepository {
	return &postgresConversationRepository{
		pool: pool,
	}
}

func (r *postgresConversationRepository) GetLedger(ctx context.Context, id entity.ConversationID) ([]*entity.Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT payload, status FROM conversation_messages WHERE conversation_id = $1 ORDER BY seq ASC`,
		id.String(),
	)
	if err != nil {
		return nil, errors.Internal("Failed to load conversation", err)
	}
	defer rows.Close()

	ledger := []*entity.Message{}
	for rows.Next() {
		var payload []byte
		var status string
		if err := rows.Scan(&payload, &status); err != nil {
			return nil, errors.Internal("Failed to scan message", err)
		}

		message, err := decodeMessageRow(payload, status)
		if err != nil {
			return nil, errors.Internal("Failed to parse message", err)
		}
		ledger = append(ledger, message)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal("Failed to iterate messages", err)
	}

	return ledger, nil
}

// AppendToLedger retries when another instance took the same seq first.
func (r *postgresConversationRepository) AppendToLedger(ctx context.Context, id entity.ConversationID, message *entity.Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return errors.Internal("Failed to encode message", err)
	}

	for attempt := 1; ; attempt++ {
		err = r.appendOnce(ctx, id.String(), message, payload)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) || attempt == maxAppendAttempts {
			return errors.Internal("Failed to append message", err)
		}
		logger.Warn("Postgres: seq conflict on conversation %s, retrying append (attempt %d)", id, attempt)
	}
}

func (r *postgresConversationRepository) appendOnce(ctx context.Context, conversationID string, message *entity.Message, payload []byte) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO conversations (id) VALUES ($1) ON CONFLICT (id) DO UPDATE SET updated_at = NOW()`,
		conversationID,
	); err != nil {
		return err
	}

	var seq int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM conversation_messages WHERE conversation_id = $1`,
		conversationID,
	).Scan(&seq); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO conversation_messages (conversation_id, seq, message_id, status, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		conversationID, seq, message.ID, string(message.Status), payload, message.CreatedAt,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// OverwriteLedger raises the stored status of every message in ledger. Rows
// are matched by message id and only updated when the new status ranks higher;
// order is fixed at append time.
func (r *postgresConversationRepository) OverwriteLedger(ctx context.Context, id entity.ConversationID, ledger []*entity.Message) error {
	if len(ledger) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, message := range ledger {
		payload, err := json.Marshal(message)
		if err != nil {
			return errors.Internal("Failed to encode message", err)
		}
		batch.Queue(
			`UPDATE conversation_messages SET status = $3, payload = $4
			 WHERE conversation_id = $1 AND message_id = $2
			   AND CASE status WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 WHEN 'read' THEN 3 ELSE 0 END < $5`,
			id.String(), message.ID, string(message.Status), payload, message.Status.Rank(),
		)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Internal("Failed to update messages", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Internal("Failed to update messages", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id = $1`, id.String()); err != nil {
		return errors.Internal("Failed to update messages", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Internal("Failed to update messages", err)
	}

	return nil
}

func (r *postgresConversationRepository) UpdateStatus(ctx context.Context, id entity.ConversationID, status entity.ConversationStatus) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversations (id, status) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()`,
		id.String(), string(status),
	)
	if err != nil {
		return errors.Internal("Failed to update conversation status", err)
	}

	return nil
}

// decodeMessageRow trusts the status column over the payload copy.
func decodeMessageRow(payload []byte, status string) (*entity.Message, error) {
	var message entity.Message
	if err := json.Unmarshal(payload, &message); err != nil {
		return nil, err
	}
	if status != "" {
		message.Status = entity.MessageStatus(status)
	}
	return &message, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
