package indicators

import (
	"time"

	"intradayBot/internal/domain"
)

// Column names written by Engine.Compute.
const (
	ColEMAFast       = "ema_fast"
	ColEMASlow       = "ema_slow"
	ColSupertrend    = "supertrend"
	ColSupertrendDir = "supertrend_dir"
	ColVWAP          = "vwap"
	ColRSI           = "rsi"
	ColMACD          = "macd"
	ColMACDSignal    = "macd_signal"
	ColATR           = "atr"
	ColVolumeRatio   = "volume_ratio"
)

// EngineConfig holds the periods used when computing the frame columns.
type EngineConfig struct {
	EMAFast          int
	EMASlow          int
	SupertrendPeriod int
	SupertrendMult   float64
	RSIPeriod        int
	ATRPeriod        int
	MACDFast         int
	MACDSlow         int
	MACDSignal       int
	VolumeLookback   int
	// Location decides session boundaries for VWAP.
	Location *time.Location
}

// DefaultEngineConfig returns the standard intraday periods.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		EMAFast:          9,
		EMASlow:          21,
		SupertrendPeriod: 7,
		SupertrendMult:   3.0,
		RSIPeriod:        14,
		ATRPeriod:        14,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		VolumeLookback:   20,
		Location:         time.UTC,
	}
}

// Engine turns a bar history into a Frame of aligned indicator columns.
// It holds no state between calls.
type Engine struct {
	cfg EngineConfig
}

// NewEngine creates an indicator engine. Zero fields fall back to the defaults.
func NewEngine(cfg EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if cfg.EMAFast <= 0 {
		cfg.EMAFast = def.EMAFast
	}
	if cfg.EMASlow <= 0 {
		cfg.EMASlow = def.EMASlow
	}
	if cfg.SupertrendPeriod <= 0 {
		cfg.SupertrendPeriod = def.SupertrendPeriod
	}
	if cfg.SupertrendMult <= 0 {
		cfg.SupertrendMult = def.SupertrendMult
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = def.ATRPeriod
	}
	if cfg.MACDFast <= 0 {
		cfg.MACDFast = def.MACDFast
	}
	if cfg.MACDSlow <= 0 {
		cfg.MACDSlow = def.MACDSlow
	}
	if cfg.MACDSignal <= 0 {
		cfg.MACDSignal = def.MACDSignal
	}
	if cfg.VolumeLookback <= 0 {
		cfg.VolumeLookback = def.VolumeLookback
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	return &Engine{cfg: cfg}
}

// Config returns the effective configuration.
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Compute returns a frame over a copy of bars with every column filled.
// Rows still in warmup hold NaN.
func (e *Engine) Compute(bars []domain.Bar) *domain.Frame {
	rows := make([]domain.Bar, len(bars))
	copy(rows, bars)

	c := closes(rows)
	st, stDir := SupertrendSeries(rows, e.cfg.SupertrendPeriod, e.cfg.SupertrendMult)
	macd, signal := MACDSeries(c, e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)

	return &domain.Frame{
		Bars: rows,
		Columns: map[string][]float64{
			ColEMAFast:       EMA(c, e.cfg.EMAFast),
			ColEMASlow:       EMA(c, e.cfg.EMASlow),
			ColSupertrend:    st,
			ColSupertrendDir: stDir,
			ColVWAP:          VWAPSeries(rows, e.cfg.Location),
			ColRSI:           RSISeries(c, e.cfg.RSIPeriod),
			ColMACD:          macd,
			ColMACDSignal:    signal,
			ColATR:           ATRSeries(rows, e.cfg.ATRPeriod),
			ColVolumeRatio:   VolumeRatioSeries(volumes(rows), e.cfg.VolumeLookback),
		},
	}
}
