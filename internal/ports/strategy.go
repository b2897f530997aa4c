package ports

import "intradayBot/internal/domain"

// Strategy defines the interface for trading strategies.
// Evaluate must be a pure function of its inputs and constructor parameters.
type Strategy interface {
	// Name returns the strategy tag recorded on instructions and trades.
	Name() string

	// RequiredBars returns the minimum history the strategy needs to produce a signal.
	RequiredBars() int

	// Evaluate inspects the indicator frame and returns an instruction.
	// When hints.PositionSide is not flat, only exit signals are meaningful.
	Evaluate(frame *domain.Frame, hints domain.Hints) domain.TradeInstruction
}
