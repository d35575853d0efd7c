package filter

import (
	"context"
	"log/slog"

	"github.com/tkingovr/captcha-guard/internal/audit"
)

// AuditFilter writes an audit record for every filtered request.
// Write failures are logged and never change the decision.
type AuditFilter struct {
	store  audit.Store
	logger *slog.Logger
}

// NewAuditFilter creates a filter writing to store.
func NewAuditFilter(store audit.Store, logger *slog.Logger) *AuditFilter {
	return &AuditFilter{store: store, logger: logger}
}

// Name returns "audit".
func (f *AuditFilter) Name() string { return "audit" }

// Process writes the audit record of a filtered request.
func (f *AuditFilter) Process(ctx context.Context, fc *FilterContext) error {
	if !fc.Filtered {
		return nil
	}
	record := fc.ToAuditRecord()
	if err := f.store.Write(ctx, record); err != nil {
		f.logger.Warn("writing audit record", "error", err, "path", record.Path)
	}
	return nil
}
