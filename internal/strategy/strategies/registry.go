package strategies

import (
	"fmt"
	"strings"
	"time"

	"intradayBot/internal/ports"
	"intradayBot/internal/strategy/indicators"
)

// Kind identifies a strategy variant. Names are resolved to a Kind once, when
// the configuration is built.
type Kind string

const (
	KindORBSupertrend Kind = "orb_supertrend"
	KindEMATrend      Kind = "ema_trend"
	KindVWAPReversion Kind = "vwap_reversion"
)

// Kinds lists every known strategy in default priority order.
func Kinds() []Kind {
	return []Kind{KindORBSupertrend, KindEMATrend, KindVWAPReversion}
}

// ParseKind resolves a configured strategy name.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(name))); k {
	case KindORBSupertrend, KindEMATrend, KindVWAPReversion:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ports.ErrConfigurationError, name)
	}
}

// Params holds the per-strategy parameters. The yaml keys match the strategy names.
type Params struct {
	ORBSupertrend BreakoutConfig      `yaml:"orb_supertrend"`
	EMATrend      MACrossoverConfig   `yaml:"ema_trend"`
	VWAPReversion MeanReversionConfig `yaml:"vwap_reversion"`
}

// DefaultParams returns the default parameters of every strategy.
func DefaultParams() Params {
	return Params{
		ORBSupertrend: DefaultBreakoutConfig(),
		EMATrend:      DefaultMACrossoverConfig(),
		VWAPReversion: DefaultMeanReversionConfig(),
	}
}

// Build constructs the strategy for kind. Session-dependent settings come from
// interval and loc so every strategy agrees with the engine's bars.
func Build(kind Kind, params Params, interval time.Duration, loc *time.Location) (ports.Strategy, error) {
	var (
		s   ports.Strategy
		err error
	)
	switch kind {
	case KindORBSupertrend:
		cfg := params.ORBSupertrend
		cfg.IntervalMinutes = int(interval / time.Minute)
		cfg.Location = loc
		s, err = NewBreakout(cfg)
	case KindEMATrend:
		s, err = NewMACrossover(params.EMATrend)
	case KindVWAPReversion:
		s, err = NewMeanReversion(params.VWAPReversion)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ports.ErrConfigurationError, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ports.ErrConfigurationError, kind, err)
	}
	return s, nil
}

// BuildAll constructs the strategies for kinds, preserving their priority order.
func BuildAll(kinds []Kind, params Params, interval time.Duration, loc *time.Location) ([]ports.Strategy, error) {
	out := make([]ports.Strategy, 0, len(kinds))
	for _, k := range kinds {
		s, err := Build(k, params, interval, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// IndicatorConfig derives the indicator periods the configured strategies read.
func IndicatorConfig(params Params, loc *time.Location) indicators.EngineConfig {
	cfg := indicators.DefaultEngineConfig()
	cfg.EMAFast = params.EMATrend.FastPeriod
	cfg.EMASlow = params.EMATrend.SlowPeriod
	cfg.SupertrendPeriod = params.ORBSupertrend.SupertrendPeriod
	cfg.SupertrendMult = params.ORBSupertrend.SupertrendMult
	cfg.Location = loc
	return cfg
}
