package postgres

import (
	"context"
	"fmt"

	"github.com/rehanbawakhan/vdetection/internal/database"
)

// UpsertSubscription stores a subscription, replacing any row with the same endpoint.
func (p *Pool) UpsertSubscription(ctx context.Context, endpoint, payload string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO push_subscriptions (endpoint, payload) VALUES ($1, $2)
		ON CONFLICT (endpoint) DO UPDATE SET payload = EXCLUDED.payload`,
		endpoint, payload,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// ListSubscriptions returns every stored subscription.
func (p *Pool) ListSubscriptions(ctx context.Context) ([]database.PushSubscription, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT id, endpoint, payload FROM push_subscriptions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []database.PushSubscription
	for rows.Next() {
		var sub database.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.Endpoint, &sub.Payload); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

// DeleteSubscription removes the subscription for endpoint.
func (p *Pool) DeleteSubscription(ctx context.Context, endpoint string) error {
	if _, err := p.db.ExecContext(ctx, "DELETE FROM push_subscriptions WHERE endpoint = $1", endpoint); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}
