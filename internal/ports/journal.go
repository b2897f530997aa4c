package ports

import (
	"context"
	"time"

	"intradayBot/internal/domain"
)

// TradeJournal is an append-only sink for closed trades.
type TradeJournal interface {
	// RecordTrade appends a closed trade. Recording the same trade id twice fails with ErrDuplicateEntry.
	RecordTrade(ctx context.Context, trade *domain.Trade) error
	// FindBySymbol retrieves the most recent trades for a symbol, up to limit.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error)
	// FindBetween retrieves trades whose exit time falls in [from, to), ordered by exit time.
	FindBetween(ctx context.Context, from, to time.Time) ([]*domain.Trade, error)
	// CountOnDay counts trades for a symbol that exited on the given calendar day.
	CountOnDay(ctx context.Context, symbol string, day time.Time) (int, error)
}
