package notification

import (
	"context"
	"log/slog"
)

const (
	// KindValueTransfer indicates value units moved between accounts. Mints
	// use an empty From, burns an empty To.
	KindValueTransfer = "value_transfer"
	// KindApproval indicates an allowance was set.
	KindApproval = "approval"
	// KindRateChange indicates the cached exchange rate was swapped.
	KindRateChange = "rate_change"
	// KindVaultDeposit indicates shares were minted against a deposit.
	KindVaultDeposit = "vault_deposit"
	// KindVaultWithdraw indicates shares were burned for a withdrawal.
	KindVaultWithdraw = "vault_withdraw"
	// KindShareTransfer indicates vault shares moved between accounts.
	KindShareTransfer = "share_transfer"
)

// Event describes a domain notification payload. Amount fields carry decimal
// strings; unused fields stay empty per kind.
type Event struct {
	Kind     string
	From     string
	To       string
	Owner    string
	Spender  string
	Amount   string
	Shares   string
	Previous string
	Next     string
}

// Notifier delivers domain events to downstream systems.
type Notifier interface {
	Emit(ctx context.Context, event Event) error
}

// LoggerNotifier writes events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Emit writes the event to the structured logger.
func (n *LoggerNotifier) Emit(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	attrs := []any{"kind", event.Kind}
	if event.Kind == KindValueTransfer || event.Kind == KindShareTransfer {
		attrs = append(attrs, "from", event.From, "to", event.To)
	}
	if event.Owner != "" {
		attrs = append(attrs, "owner", event.Owner)
	}
	if event.Spender != "" {
		attrs = append(attrs, "spender", event.Spender)
	}
	if event.Amount != "" {
		attrs = append(attrs, "amount", event.Amount)
	}
	if event.Shares != "" {
		attrs = append(attrs, "shares", event.Shares)
	}
	if event.Previous != "" {
		attrs = append(attrs, "previous", event.Previous, "next", event.Next)
	}
	n.logger.Info("event", attrs...)
	return nil
}

// Recorder captures events in memory for tests.
type Recorder struct {
	Events []Event
}

// Emit appends the event to the recorder.
func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.Events = append(r.Events, event)
	return nil
}

// Last returns the most recent event of the given kind, or a zero Event.
func (r *Recorder) Last(kind string) Event {
	for i := len(r.Events) - 1; i >= 0; i-- {
		if r.Events[i].Kind == kind {
			return r.Events[i]
		}
	}
	return Event{}
}
