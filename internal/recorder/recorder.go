package recorder

import (
	"IndexPilot/internal/guardian"
	"IndexPilot/internal/model"
)

// Recorder persists cycle history for post-session review.
type Recorder interface {
	RecordCycle(res *model.CycleResult) error
	RecordClosedTrade(trade *model.ClosedTrade) error
	RecordGuardianAlert(alert *guardian.Alert) error
	Close() error
}
