package recorder

import (
	"IndexPilot/internal/guardian"
	"IndexPilot/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordCycle(_ *model.CycleResult) error       { return nil }
func (n *NoopRecorder) RecordClosedTrade(_ *model.ClosedTrade) error { return nil }
func (n *NoopRecorder) RecordGuardianAlert(_ *guardian.Alert) error  { return nil }
func (n *NoopRecorder) Close() error                                 { return nil }
