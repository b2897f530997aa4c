package domain

// Signal is the action a strategy recommends.
type Signal string

const (
	NoTrade    Signal = "no_trade"
	EntryLong  Signal = "entry_long"
	ExitLong   Signal = "exit_long"
	EntryShort Signal = "entry_short"
	ExitShort  Signal = "exit_short"
)

// IsEntry reports whether the signal opens a position.
func (s Signal) IsEntry() bool {
	return s == EntryLong || s == EntryShort
}

// IsExit reports whether the signal closes a position.
func (s Signal) IsExit() bool {
	return s == ExitLong || s == ExitShort
}

// TradeInstruction is a strategy's output. It never carries a quantity;
// sizing belongs to the risk manager.
type TradeInstruction struct {
	Signal      Signal
	Symbol      string
	StopLoss    *float64
	Target      *float64
	EntryPrice  *float64
	Reason      string
	StrategyTag string
}

// Side returns the order side that executes an entry instruction.
func (t TradeInstruction) Side() OrderSide {
	if t.Signal == EntryShort {
		return Sell
	}
	return Buy
}

// Float returns a pointer to v, for optional instruction fields.
func Float(v float64) *float64 {
	return &v
}
