package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"intradayBot/internal/domain"
	"intradayBot/internal/ports"
	"intradayBot/internal/strategy/analytics"
	"intradayBot/internal/strategy/strategies"
)

// ParameterRange defines a range for a parameter to optimize. Name is the
// strategy key and the parameter key joined by a dot, e.g. "ema_trend.ema_fast".
type ParameterRange struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	IsInt bool
}

// Runner replays one parameter set and returns the closed trades.
type Runner func(ctx context.Context, params strategies.Params) ([]domain.Trade, error)

// OptimizationResult holds the results of a parameter optimization
type OptimizationResult struct {
	Parameters map[string]float64
	Metrics    *analytics.PerformanceMetrics
	Score      float64
	Err        error
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []ParameterRange
	Base            strategies.Params
	InitialCapital  float64
	Workers         int // Concurrent replays; defaults to 4
	ScoreFunction   func(*analytics.PerformanceMetrics) float64
}

// Optimizer sweeps a parameter grid over a fixed bar set.
type Optimizer struct {
	config OptimizerConfig
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig) (*Optimizer, error) {
	if len(config.ParameterRanges) == 0 {
		return nil, fmt.Errorf("%w: at least one parameter range is required", ports.ErrConfigurationError)
	}
	for _, r := range config.ParameterRanges {
		if r.Step <= 0 || r.Max < r.Min {
			return nil, fmt.Errorf("%w: invalid range for %s", ports.ErrConfigurationError, r.Name)
		}
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	return &Optimizer{config: config}, nil
}

// Combinations returns every point of the grid.
func (o *Optimizer) Combinations() []map[string]float64 {
	return o.generateParameterCombinations()
}

// Optimize replays every combination and returns the results best score first.
// Combinations that fail to apply or replay carry Err and sort last.
func (o *Optimizer) Optimize(ctx context.Context, run Runner) ([]OptimizationResult, error) {
	combinations := o.generateParameterCombinations()
	results := make([]OptimizationResult, len(combinations))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < o.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = o.evaluate(ctx, run, combinations[i])
			}
		}()
	}

feed:
	for i := range combinations {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("optimize failed: %w: %w", ports.ErrContextCanceled, err)
	}
	sortResultsByScore(results)
	return results, nil
}

func (o *Optimizer) evaluate(ctx context.Context, run Runner, combination map[string]float64) OptimizationResult {
	res := OptimizationResult{Parameters: combination}
	params, err := Apply(o.config.Base, combination)
	if err != nil {
		res.Err = err
		return res
	}
	trades, err := run(ctx, params)
	if err != nil {
		res.Err = err
		return res
	}
	res.Metrics = analytics.AnalyzePerformance(trades, o.config.InitialCapital)
	res.Score = o.config.ScoreFunction(res.Metrics)
	return res
}

// generateParameterCombinations generates all possible parameter combinations
func (o *Optimizer) generateParameterCombinations() []map[string]float64 {
	var combinations []map[string]float64
	current := make(map[string]float64)

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			combination := make(map[string]float64, len(current))
			for k, v := range current {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		steps := int(math.Floor((param.Max-param.Min)/param.Step + 1e-9))
		for i := 0; i <= steps; i++ {
			value := param.Min + float64(i)*param.Step
			if param.IsInt {
				value = math.Round(value)
			}
			current[param.Name] = value
			generate(paramIndex + 1)
		}
	}

	generate(0)
	return combinations
}

// Apply returns a copy of base with the named parameters overridden.
func Apply(base strategies.Params, values map[string]float64) (strategies.Params, error) {
	raw, err := yaml.Marshal(base)
	if err != nil {
		return base, fmt.Errorf("%w: encode params: %w", ports.ErrConfigurationError, err)
	}
	tree := make(map[string]map[string]interface{})
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return base, fmt.Errorf("%w: decode params: %w", ports.ErrConfigurationError, err)
	}
	for name, v := range values {
		group, key, ok := strings.Cut(name, ".")
		if !ok {
			return base, fmt.Errorf("%w: parameter %q must be strategy.key", ports.ErrConfigurationError, name)
		}
		fields, ok := tree[group]
		if !ok {
			return base, fmt.Errorf("%w: unknown strategy %q", ports.ErrConfigurationError, group)
		}
		if _, ok := fields[key]; !ok {
			return base, fmt.Errorf("%w: unknown parameter %q", ports.ErrConfigurationError, name)
		}
		// Whole values are written as integers so they decode into int fields too.
		if v == math.Trunc(v) {
			fields[key] = int64(v)
		} else {
			fields[key] = v
		}
	}
	raw, err = yaml.Marshal(tree)
	if err != nil {
		return base, fmt.Errorf("%w: encode params: %w", ports.ErrConfigurationError, err)
	}
	out := base
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return base, fmt.Errorf("%w: apply params: %w", ports.ErrConfigurationError, err)
	}
	return out, nil
}

// ParseRanges parses "name=min:max:step" entries separated by commas. A range
// whose bounds and step are all whole numbers is treated as integral.
func ParseRanges(grid string) ([]ParameterRange, error) {
	var ranges []ParameterRange
	for _, entry := range strings.Split(grid, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, bounds, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("%w: range %q must be name=min:max:step", ports.ErrConfigurationError, entry)
		}
		parts := strings.Split(bounds, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: range %q must be name=min:max:step", ports.ErrConfigurationError, entry)
		}
		var nums [3]float64
		isInt := true
		for i, p := range parts {
			n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: range %q: %w", ports.ErrConfigurationError, entry, err)
			}
			nums[i] = n
			if n != math.Trunc(n) {
				isInt = false
			}
		}
		ranges = append(ranges, ParameterRange{
			Name:  strings.TrimSpace(name),
			Min:   nums[0],
			Max:   nums[1],
			Step:  nums[2],
			IsInt: isInt,
		})
	}
	return ranges, nil
}

// sortResultsByScore sorts optimization results by score in descending order
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if (results[i].Err == nil) != (results[j].Err == nil) {
			return results[i].Err == nil
		}
		return results[i].Score > results[j].Score
	})
}

// DefaultScoreFunction blends win rate, profit factor, drawdown, return and
// risk reward into one score.
func DefaultScoreFunction(metrics *analytics.PerformanceMetrics) float64 {
	score := 0.0
	score += metrics.WinRate * 0.3
	score += metrics.ProfitFactor * 0.2
	score += (1 - metrics.MaxDrawdown) * 0.2
	score += metrics.ReturnOnInvestment * 0.2
	score += metrics.RiskRewardRatio * 0.1
	return score
}

// SharpeScore ranks by Sharpe ratio alone.
func SharpeScore(metrics *analytics.PerformanceMetrics) float64 {
	return metrics.SharpeRatio
}
