package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type EventKind string

const (
	EventDeposit EventKind = "deposit"
	EventSwap    EventKind = "swap"
)

// Event is one executed deposit or swap, published to subscribers and
// appended to the activity store.
type Event struct {
	ID         string        `json:"id"`
	Kind       EventKind     `json:"kind"`
	Signature  string        `json:"signature"`
	Wallet     string        `json:"wallet"`
	Subject    string        `json:"subject"` // vault for deposits, proposal for swaps
	Branch     string        `json:"branch,omitempty"`
	TokenIn    string        `json:"token_in"`
	TokenOut   string        `json:"token_out,omitempty"`
	Amount     string        `json:"amount"`
	AmountRaw  uint64        `json:"amount_raw"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	ExecutedAt time.Time     `json:"executed_at"`
}

// Recorder receives executed events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Invalidator drops cached read snapshots after a state change.
type Invalidator interface {
	InvalidateVault(ctx context.Context, vault, wallet string) error
	InvalidateMarket(ctx context.Context, proposal, branch string) error
}

// Recorders fans an event out to every non-nil recorder. Failures are
// logged and never fail the caller.
type Recorders struct {
	sinks  []Recorder
	logger *logrus.Logger
}

func NewRecorders(logger *logrus.Logger, sinks ...Recorder) *Recorders {
	if logger == nil {
		logger = logrus.New()
	}
	r := &Recorders{logger: logger}
	for _, s := range sinks {
		if s != nil && !isNilRecorder(s) {
			r.sinks = append(r.sinks, s)
		}
	}
	return r
}

func (r *Recorders) Record(ctx context.Context, ev Event) error {
	if r == nil {
		return nil
	}
	for _, s := range r.sinks {
		if err := s.Record(ctx, ev); err != nil {
			r.logger.WithError(err).WithFields(logrus.Fields{
				"event_id": ev.ID,
				"kind":     ev.Kind,
			}).Warn("failed to record event")
		}
	}
	return nil
}

// Len is the number of active sinks.
func (r *Recorders) Len() int {
	if r == nil {
		return 0
	}
	return len(r.sinks)
}

func isNilRecorder(s Recorder) bool {
	switch v := s.(type) {
	case *RedisCache:
		return v == nil
	case *ClickHouseStore:
		return v == nil
	}
	return false
}
