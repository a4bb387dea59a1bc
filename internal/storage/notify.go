package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

// ChannelOutreachGenerated carries a model.GeneratedNotification for every
// persisted outreach draft.
const ChannelOutreachGenerated = "outreach_generated"

var errNoNotifyConn = errors.New("storage: notify connection not configured")

// Listen subscribes the notification connection to channel.
func (db *DB) Listen(ctx context.Context, channel string) error {
	if db.notifyConn == nil {
		return errNoNotifyConn
	}
	if _, err := db.notifyConn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("storage: listen %s: %w", channel, err)
	}
	return nil
}

// WaitForNotification blocks until a notification arrives on a listened
// channel or ctx is done.
func (db *DB) WaitForNotification(ctx context.Context) (channel, payload string, err error) {
	if db.notifyConn == nil {
		return "", "", errNoNotifyConn
	}
	n, err := db.notifyConn.WaitForNotification(ctx)
	if err != nil {
		return "", "", fmt.Errorf("storage: wait for notification: %w", err)
	}
	return n.Channel, n.Payload, nil
}

// Notify sends payload on channel through the pool.
func (db *DB) Notify(ctx context.Context, channel, payload string) error {
	if _, err := db.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, payload); err != nil {
		return fmt.Errorf("storage: notify %s: %w", channel, err)
	}
	return nil
}

// NotifyGenerated publishes n on ChannelOutreachGenerated.
func (db *DB) NotifyGenerated(ctx context.Context, n model.GeneratedNotification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("storage: marshal notification: %w", err)
	}
	return db.Notify(ctx, ChannelOutreachGenerated, string(data))
}
