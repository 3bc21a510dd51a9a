package usecase

import (
	"context"

	"github.com/xavierca1/ligue-crm/internal/infra/queue"
)

type EventPublisher interface {
	PublishLeadConverted(ctx context.Context, event queue.LeadConvertedEvent) error
}

// Auditor is handed every committed conversion after the transaction has
// closed. Its failures never affect the conversion.
type Auditor interface {
	Record(ctx context.Context, result *ConversionResult) error
}

// LeadConverter is the conversion entry point used by the HTTP layer.
type LeadConverter interface {
	Execute(ctx context.Context, input ConvertLeadInput) (*ConvertLeadOutput, error)
	GetConversion(ctx context.Context, leadID int64) (*ConvertLeadOutput, error)
}
