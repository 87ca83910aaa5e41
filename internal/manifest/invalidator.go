package manifest

import (
	"context"
	"log/slog"

	"cloud.google.com/go/pubsub"
)

// Invalidator subscribes to the corpus-updated Pub/Sub topic and
// clears the manifest Cache whenever the external indexer publishes a
// reindex notification. This is the teacher's one domain dependency
// that shipped in go.mod with zero imports in its own source;
// SPEC_FULL.md's external invalidation hook gives it a home.
type Invalidator struct {
	sub   *pubsub.Subscription
	cache *Cache
}

// NewInvalidator wires sub to cache.
func NewInvalidator(sub *pubsub.Subscription, cache *Cache) *Invalidator {
	return &Invalidator{sub: sub, cache: cache}
}

// Run blocks receiving messages until ctx is canceled or the
// subscription's Receive call returns an error. Every message is
// treated as a corpus-updated notification regardless of payload and
// is acked unconditionally — invalidation is idempotent, so there is
// no harm in over-invalidating a redelivered message.
func (inv *Invalidator) Run(ctx context.Context) error {
	return inv.sub.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
		inv.cache.Invalidate()
		msg.Ack()
		slog.Info("manifest invalidator: processed corpus-updated notification", "message_id", msg.ID)
	})
}
