package notifier

import (
	"strings"
	"testing"
	"time"

	"IndexPilot/internal/model"
)

func TestFormatTradeClosed_ShortTicket(t *testing.T) {
	now := time.Now()
	ct := &model.ClosedTrade{
		Ticket: "orphan-7", Direction: model.Sell, Entry: 137000, Exit: 137100,
		Quantity: 1, RealizedPnL: -20, OpenedAt: now.Add(-10 * time.Minute), ClosedAt: now,
		Reason: model.ExitOrphan,
	}
	msg := FormatTradeClosed(ct)
	if !strings.Contains(msg, "orphan-7") {
		t.Errorf("short ticket should appear whole, got: %s", msg)
	}
	if !strings.Contains(msg, "🔻") {
		t.Errorf("losing trade should carry the loss icon, got: %s", msg)
	}
}

func TestFormatTradeClosed_LongTicketShortened(t *testing.T) {
	now := time.Now()
	ct := &model.ClosedTrade{
		Ticket: "0f4a9c12-aaaa-bbbb-cccc-ddddeeeeffff", Direction: model.Buy,
		Entry: 137000, Exit: 137400, Quantity: 1, RealizedPnL: 80,
		OpenedAt: now.Add(-time.Hour), ClosedAt: now, Reason: model.ExitTakeProfit,
	}
	msg := FormatTradeClosed(ct)
	if !strings.Contains(msg, "0f4a9c12 closed") {
		t.Errorf("long ticket should shorten to 8 characters, got: %s", msg)
	}
	if strings.Contains(msg, "ddddeeeeffff") {
		t.Errorf("full ticket should not appear, got: %s", msg)
	}
}
