// Package storage is the PostgreSQL persistence layer for the outreach
// service: prospect tickets and their interaction history, agents and the
// user directory they are mirrored into, the agent audit log, research
// sessions and the pgvector index of effective messages.
//
// Queries go through a pgxpool. LISTEN/NOTIFY uses a dedicated connection
// because a pooled connection may be returned to the pool (or sit behind
// PgBouncer) between LISTEN and the notification.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// DB is the storage handle shared by every service.
type DB struct {
	pool       *pgxpool.Pool
	notifyConn *pgx.Conn
	logger     *slog.Logger
}

// New connects to poolDSN and, when notifyDSN is non-empty, opens the
// notification connection.
func New(ctx context.Context, poolDSN, notifyDSN string, logger *slog.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(poolDSN)
	if err != nil {
		return nil, fmt.Errorf("storage: parse pool DSN: %w", err)
	}

	// The vector type only exists after the first migration, so a failed
	// registration on an early connection is not fatal.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if err := pgxvector.RegisterTypes(ctx, conn); err != nil {
			logger.Debug("storage: pgvector types not registered", "error", err)
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping pool: %w", err)
	}

	db := &DB{pool: pool, logger: logger}
	if notifyDSN != "" {
		db.notifyConn, err = pgx.Connect(ctx, notifyDSN)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("storage: connect notify: %w", err)
		}
	}
	return db, nil
}

// Pool exposes the connection pool.
func (db *DB) Pool() *pgxpool.Pool { return db.pool }

// HasNotifyConn reports whether LISTEN is available.
func (db *DB) HasNotifyConn() bool { return db.notifyConn != nil }

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// ReloadTypes re-registers pgvector types on idle pooled connections. Call it
// after migrations created the extension on a fresh database.
func (db *DB) ReloadTypes() {
	db.pool.Reset()
}

// Close shuts down the pool and the notification connection.
func (db *DB) Close(ctx context.Context) {
	db.pool.Close()
	if db.notifyConn != nil {
		if err := db.notifyConn.Close(ctx); err != nil {
			db.logger.Warn("storage: close notify connection", "error", err)
		}
	}
}
