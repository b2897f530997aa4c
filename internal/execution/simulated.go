package execution

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"intradayBot/internal/domain"
	"intradayBot/internal/ports"
)

// FillPolicy decides when a simulated entry fills.
type FillPolicy string

const (
	// FillAtClose fills immediately at the deciding bar's close.
	FillAtClose FillPolicy = "close"
	// FillNextOpen fills at the open of the symbol's next bar.
	FillNextOpen FillPolicy = "next_open"
)

// ParseFillPolicy resolves a configured policy name.
func ParseFillPolicy(name string) (FillPolicy, error) {
	switch p := FillPolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case FillAtClose, FillNextOpen:
		return p, nil
	case "":
		return FillAtClose, nil
	default:
		return "", fmt.Errorf("%w: unknown fill policy %q", ports.ErrConfigurationError, name)
	}
}

type pendingEntry struct {
	id    string
	instr domain.TradeInstruction
	qty   float64
}

// Simulated fills orders locally without a broker.
type Simulated struct {
	policy  FillPolicy
	logger  ports.Logger
	pending map[string]pendingEntry
}

// NewSimulated creates a simulated execution adapter.
func NewSimulated(policy FillPolicy, logger ports.Logger) *Simulated {
	if policy == "" {
		policy = FillAtClose
	}
	return &Simulated{policy: policy, logger: logger, pending: make(map[string]pendingEntry)}
}

// Name implements Adapter.
func (s *Simulated) Name() string {
	return "simulated_" + string(s.policy)
}

// SubmitEntry implements Adapter.
func (s *Simulated) SubmitEntry(ctx context.Context, instr domain.TradeInstruction, qty float64, bar domain.Bar) (*Fill, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ports.ErrInvalidRequest)
	}
	id := uuid.NewString()
	if s.policy == FillAtClose {
		return entryFill(id, instr, qty, bar.Close, bar.Timestamp), nil
	}
	if _, exists := s.pending[instr.Symbol]; exists {
		return nil, fmt.Errorf("%w: entry already pending for %s", ports.ErrPositionExists, instr.Symbol)
	}
	s.pending[instr.Symbol] = pendingEntry{id: id, instr: instr, qty: qty}
	s.logger.Debug(ctx, "Simulated entry queued for next open", map[string]interface{}{
		"orderID": id,
		"symbol":  instr.Symbol,
		"qty":     qty,
	})
	return nil, nil
}

// SubmitExit implements Adapter. Exits always fill at price.
func (s *Simulated) SubmitExit(ctx context.Context, pos domain.Position, price float64, reason domain.ExitReason) (float64, error) {
	return price, nil
}

// Poll implements Adapter.
func (s *Simulated) Poll(ctx context.Context, bar domain.Bar) []Fill {
	p, ok := s.pending[bar.Symbol]
	if !ok {
		return nil
	}
	delete(s.pending, bar.Symbol)
	return []Fill{*entryFill(p.id, p.instr, p.qty, bar.Open, bar.Timestamp)}
}

// PollExits implements Adapter. Simulated stops are evaluated by the engine.
func (s *Simulated) PollExits(ctx context.Context, bar domain.Bar) []Exit {
	return nil
}

// HasPending implements Adapter.
func (s *Simulated) HasPending(symbol string) bool {
	_, ok := s.pending[symbol]
	return ok
}

// PendingCount implements Adapter.
func (s *Simulated) PendingCount() int {
	return len(s.pending)
}

// CancelAll implements Adapter.
func (s *Simulated) CancelAll(ctx context.Context) int {
	n := len(s.pending)
	if n > 0 {
		symbols := make([]string, 0, n)
		for sym := range s.pending {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		s.logger.Info(ctx, "Pending simulated entries cancelled", map[string]interface{}{"symbols": strings.Join(symbols, ",")})
	}
	s.pending = make(map[string]pendingEntry)
	return n
}
