package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"helpdesk/pkg/logger"
)

// NewPostgresPool opens a pgx pool and verifies the connection.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	logger.Info("Successfully connected to postgres")
	return pool, nil
}

// RunMigrations creates the conversation and subscription tables if missing.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	createConversationsTable := `
	CREATE TABLE IF NOT EXISTS conversations (
		id VARCHAR(128) PRIMARY KEY,
		status VARCHAR(32) NOT NULL DEFAULT 'Pending',
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`

	createMessagesTable := `
	CREATE TABLE IF NOT EXISTS conversation_messages (
		conversation_id VARCHAR(128) NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		message_id BIGINT NOT NULL,
		status VARCHAR(16) NOT NULL CHECK (status IN ('sent', 'delivered', 'read')),
		payload JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		PRIMARY KEY (conversation_id, seq),
		UNIQUE (conversation_id, message_id)
	);`

	createPushSubscriptionsTable := `
	CREATE TABLE IF NOT EXISTS push_subscriptions (
		conversation_id VARCHAR(128) PRIMARY KEY,
		payload JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`

	createSupportSubscriptionsTable := `
	CREATE TABLE IF NOT EXISTS support_subscriptions (
		identity TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`

	migrations := []string{
		createConversationsTable,
		createMessagesTable,
		createPushSubscriptionsTable,
		createSupportSubscriptionsTable,
	}

	for i, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}

	logger.Info("Database migrations completed successfully")
	return nil
}
