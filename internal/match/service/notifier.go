package service

import "context"

// Notifier delivers realtime push payloads. One topic per user (pairing
// notifications) and one per match (submission notices, results, errors).
// Payloads carry their own "type" discriminator field.
type Notifier interface {
	// PublishToUser pushes a payload on a user's personal topic.
	PublishToUser(ctx context.Context, userID string, payload interface{}) error

	// PublishToMatch pushes a payload on a match topic, reaching both players.
	PublishToMatch(ctx context.Context, matchID string, payload interface{}) error
}
