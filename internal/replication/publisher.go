package replication

import "context"

// Publisher emits merchant-created events, fire-and-forget. Implementations
// log delivery outcomes; callers never learn whether replication succeeded,
// and nothing here is retried on their behalf.
type Publisher interface {
	PublishMerchantCreated(ctx context.Context, event MerchantCreatedEvent)
}
