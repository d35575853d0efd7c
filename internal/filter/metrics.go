package filter

import (
	"context"

	"github.com/tkingovr/captcha-guard/internal/metrics"
)

// MetricsFilter counts filtered requests by outcome.
type MetricsFilter struct {
	recorder *metrics.Recorder
}

// NewMetricsFilter creates a filter reporting to recorder.
func NewMetricsFilter(recorder *metrics.Recorder) *MetricsFilter {
	return &MetricsFilter{recorder: recorder}
}

// Name returns "metrics".
func (f *MetricsFilter) Name() string { return "metrics" }

// Process observes the outcome and verification time of a decided request.
func (f *MetricsFilter) Process(_ context.Context, fc *FilterContext) error {
	if !fc.Filtered || fc.Outcome == "" {
		return nil
	}
	f.recorder.ObserveOutcome(fc.Outcome)
	if fc.VerifyDuration > 0 {
		f.recorder.ObserveVerification(fc.VerifyDuration)
	}
	return nil
}
