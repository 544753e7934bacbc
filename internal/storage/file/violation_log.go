package file

import (
	"context"
	"fmt"

	"synthdesk-listener/internal/domain"
	"synthdesk-listener/internal/storage"
)

// ViolationLog implements storage.ViolationLog on sequence_integrity.log.
type ViolationLog struct {
	layout Layout
}

// NewViolationLog creates a ViolationLog over the given layout.
func NewViolationLog(layout Layout) *ViolationLog {
	return &ViolationLog{layout: layout}
}

var _ storage.ViolationLog = (*ViolationLog)(nil)

// Append durably records one guard rejection. One line per violation:
//
//	<rejected-ts>, pair=<pair>, non_monotonic_ts, prev=<previous-ts>
func (l *ViolationLog) Append(_ context.Context, v *domain.Violation) error {
	line := fmt.Sprintf("%s, pair=%s, non_monotonic_ts, prev=%s", v.Rejected, v.Pair, v.Previous)
	return AppendLine(l.layout.ViolationLogPath(), line)
}
