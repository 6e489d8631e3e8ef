package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/repository"
	"helpdesk/pkg/errors"
)

type postgresSubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSubscriptionRepository(pool *pgxpool.Pool) repository.SubscriptionRepository {
	return &postgresSubscriptionRepository{
		pool: pool,
	}
}

func (r *postgresSubscriptionRepository) GetPushSubscription(ctx context.Context, id entity.ConversationID) (*entity.PushSubscription, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx,
		`SELECT payload FROM push_subscriptions WHERE conversation_id = $1`,
		id.String(),
	).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Internal("Failed to get push subscription", err)
	}

	var sub entity.PushSubscription
	if err := json.Unmarshal(payload, &sub); err != nil {
		return nil, errors.Internal("Failed to parse push subscription", err)
	}

	return &sub, nil
}

func (r *postgresSubscriptionRepository) SavePushSubscription(ctx context.Context, id entity.ConversationID, sub *entity.PushSubscription) error {
	payload, err := encodeSubscription(sub)
	if err != nil {
		return errors.Internal("Failed to encode push subscription", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO push_subscriptions (conversation_id, payload) VALUES ($1, $2)
		 ON CONFLICT (conversation_id) DO UPDATE SET payload = EXCLUDED.payload, created_at = NOW()`,
		id.String(), payload,
	)
	if err != nil {
		return errors.Internal("Failed to save push subscription", err)
	}

	return nil
}

func (r *postgresSubscriptionRepository) ListSupportSubscriptions(ctx context.Context) ([]*entity.PushSubscription, error) {
	rows, err := r.pool.Query(ctx, `SELECT payload FROM support_subscriptions ORDER BY created_at ASC`)
	if err != nil {
		return nil, errors.Internal("Failed to list support subscriptions", err)
	}
	defer rows.Close()

	var subs []*entity.PushSubscription
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Internal("Failed to scan support subscription", err)
		}

		var sub entity.PushSubscription
		if err := json.Unmarshal(payload, &sub); err != nil {
			return nil, errors.Internal("Failed to parse support subscription", err)
		}
		subs = append(subs, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal("Failed to iterate support subscriptions", err)
	}

	return subs, nil
}

func (r *postgresSubscriptionRepository) AddSupportSubscription(ctx context.Context, sub *entity.PushSubscription) error {
	payload, err := encodeSubscription(sub)
	if err != nil {
		return errors.Internal("Failed to encode support subscription", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO support_subscriptions (identity, payload) VALUES ($1, $2) ON CONFLICT (identity) DO NOTHING`,
		sub.Identity(), payload,
	)
	if err != nil {
		return errors.Internal("Failed to save support subscription", err)
	}

	return nil
}

func (r *postgresSubscriptionRepository) RemoveSupportSubscription(ctx context.Context, identity string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM support_subscriptions WHERE identity = $1`, identity); err != nil {
		return errors.Internal("Failed to remove support subscription", err)
	}
	return nil
}

func encodeSubscription(sub *entity.PushSubscription) ([]byte, error) {
	stored := *sub
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	return json.Marshal(stored)
}
