package application

import (
	"context"

	"github.com/felixgeelhaar/coachpay/internal/shared/domain"
	"github.com/felixgeelhaar/coachpay/pkg/observability"
)

type metadataSetter interface {
	SetMetadata(metadata domain.EventMetadata)
}

// StampCausation records on each event what caused it: the correlation id
// and operation of ctx (for reconciled events, the processor event id and
// type) and the trainer an API call acted for. Events that already carry a
// correlation id are left alone.
func StampCausation(ctx context.Context, events ...domain.DomainEvent) {
	metadata := domain.EventMetadata{
		CorrelationID: observability.CorrelationIDFromContext(ctx),
		CausationID:   observability.OperationFromContext(ctx),
		ActorID:       observability.TrainerIDFromContext(ctx),
	}
	for _, event := range events {
		setter, ok := event.(metadataSetter)
		if !ok || event.Metadata().CorrelationID != "" {
			continue
		}
		setter.SetMetadata(metadata)
	}
}
