package event

import (
	"context"

	"github.com/rentdesk/backend/internal/domain/rental"
	"github.com/rentdesk/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// RentalActivityLogger writes submissions and blocked selections to the log
type RentalActivityLogger struct {
	logger *zap.Logger
}

// NewRentalActivityLogger creates the handler
func NewRentalActivityLogger(logger *zap.Logger) *RentalActivityLogger {
	return &RentalActivityLogger{logger: logger.Named("rental_activity")}
}

// EventTypes returns the rental events this handler logs
func (h *RentalActivityLogger) EventTypes() []string {
	return []string{rental.EventTypeContractDraftSubmitted, rental.EventTypeContractConflictDetected}
}

// Handle logs one event; unknown events are ignored
func (h *RentalActivityLogger) Handle(ctx context.Context, event shared.DomainEvent) error {
	base := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("org_id", event.OrgID().String()),
		zap.String("draft_id", event.AggregateID().String()),
	}

	switch e := event.(type) {
	case *rental.ContractDraftSubmittedEvent:
		h.logger.Info("contract draft submitted", append(base,
			zap.String("contract_id", e.ContractID.String()),
			zap.Int("duration_months", e.DurationMonths),
			zap.String("actual_rent", e.ActualRent.StringFixed(3)),
			zap.String("tenant_total_due", e.TenantTotalDue.StringFixed(3)),
		)...)
	case *rental.ContractConflictDetectedEvent:
		fields := append(base,
			zap.String("property_id", e.PropertyID.String()),
			zap.String("conflicting_contract_id", e.Conflicting.ID.String()),
			zap.String("conflicting_state", string(e.Conflicting.State)),
		)
		if e.UnitID != nil {
			fields = append(fields, zap.String("unit_id", e.UnitID.String()))
		}
		h.logger.Warn("contract conflict detected", fields...)
	}
	return nil
}

var _ shared.EventHandler = (*RentalActivityLogger)(nil)
