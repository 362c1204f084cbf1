package backtest

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/rustyeddy/portsim/risk"
)

// Axis is one swept risk parameter.
type Axis struct {
	Name   string
	Values []float64
	Apply  func(cfg *risk.Config, v float64)
}

var axisSetters = map[string]func(*risk.Config, float64){
	"stop_loss_pct":           func(c *risk.Config, v float64) { c.StopLossPct = v },
	"profit_target_ratio":     func(c *risk.Config, v float64) { c.ProfitTargetRatio = v },
	"max_position_size_pct":   func(c *risk.Config, v float64) { c.MaxPositionSizePct = v },
	"min_position_size_pct":   func(c *risk.Config, v float64) { c.MinPositionSizePct = v },
	"risk_per_trade_pct":      func(c *risk.Config, v float64) { c.RiskPerTradePct = v },
	"max_portfolio_risk_pct":  func(c *risk.Config, v float64) { c.MaxPortfolioRiskPct = v },
	"trailing_activation_pct": func(c *risk.Config, v float64) { c.TrailingActivationPct = v },
	"trailing_distance_pct":   func(c *risk.Config, v float64) { c.TrailingDistancePct = v },
	"max_open_positions":      func(c *risk.Config, v float64) { c.MaxOpenPositions = int(v) },
	"max_drawdown_pct":        func(c *risk.Config, v float64) { c.MaxDrawdownPct = v },
	"max_daily_loss_pct":      func(c *risk.Config, v float64) { c.MaxDailyLossPct = v },
}

// AxisNames lists the parameters NewAxis understands.
func AxisNames() []string {
	names := make([]string, 0, len(axisSetters))
	for n := range axisSetters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewAxis builds an axis for a named risk parameter.
func NewAxis(name string, values ...float64) (Axis, error) {
	set, ok := axisSetters[name]
	if !ok {
		return Axis{}, fmt.Errorf("unknown sweep parameter %q", name)
	}
	if len(values) == 0 {
		return Axis{}, fmt.Errorf("sweep parameter %q has no values", name)
	}
	return Axis{Name: name, Values: values, Apply: set}, nil
}

// ParseAxis parses "name=v1,v2,v3".
func ParseAxis(spec string) (Axis, error) {
	name, list, ok := strings.Cut(spec, "=")
	if !ok {
		return Axis{}, fmt.Errorf("sweep parameter %q: want name=v1,v2", spec)
	}
	var values []float64
	for _, s := range strings.Split(list, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Axis{}, fmt.Errorf("sweep parameter %q: bad value %q: %w", name, s, err)
		}
		values = append(values, v)
	}
	return NewAxis(strings.TrimSpace(name), values...)
}

func taskName(params map[string]float64, order []string) string {
	parts := make([]string, 0, len(order))
	for _, n := range order {
		parts = append(parts, n+"="+strconv.FormatFloat(params[n], 'g', -1, 64))
	}
	return strings.Join(parts, ",")
}

// GridTasks expands the cartesian product of axes over base. Every task
// gets its own copy of the risk config.
func GridTasks(base Task, axes ...Axis) []Task {
	tasks := []Task{cloneTask(base)}
	order := make([]string, len(axes))
	for i, ax := range axes {
		order[i] = ax.Name
		next := make([]Task, 0, len(tasks)*len(ax.Values))
		for _, t := range tasks {
			for _, v := range ax.Values {
				nt := cloneTask(t)
				ax.Apply(&nt.Risk, v)
				nt.Params[ax.Name] = v
				next = append(next, nt)
			}
		}
		tasks = next
	}
	for i := range tasks {
		tasks[i].Name = taskName(tasks[i].Params, order)
		if base.Name != "" {
			tasks[i].Name = base.Name + ":" + tasks[i].Name
		}
	}
	return tasks
}

// Range is the sampling interval of one Monte-Carlo parameter.
type Range struct {
	Axis     Axis // Values is ignored
	Min, Max float64
}

// NewRange builds a range for a named risk parameter.
func NewRange(name string, min, max float64) (Range, error) {
	ax, err := NewAxis(name, min, max)
	if err != nil {
		return Range{}, err
	}
	if max < min {
		return Range{}, fmt.Errorf("sweep parameter %q: max below min", name)
	}
	return Range{Axis: ax, Min: min, Max: max}, nil
}

// ParseRange parses "name=min:max".
func ParseRange(spec string) (Range, error) {
	name, bounds, ok := strings.Cut(spec, "=")
	lo, hi, ok2 := strings.Cut(bounds, ":")
	if !ok || !ok2 {
		return Range{}, fmt.Errorf("sweep range %q: want name=min:max", spec)
	}
	min, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return Range{}, fmt.Errorf("sweep range %q: %w", spec, err)
	}
	max, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return Range{}, fmt.Errorf("sweep range %q: %w", spec, err)
	}
	return NewRange(strings.TrimSpace(name), min, max)
}

// MonteCarloTasks draws n random parameter sets uniformly from ranges.
// The same seed always produces the same tasks.
func MonteCarloTasks(base Task, n int, seed int64, ranges ...Range) []Task {
	rng := rand.New(rand.NewSource(seed))

	tasks := make([]Task, 0, n)
	for i := 0; i < n; i++ {
		t := cloneTask(base)
		for _, r := range ranges {
			v := r.Min + rng.Float64()*(r.Max-r.Min)
			r.Axis.Apply(&t.Risk, v)
			t.Params[r.Axis.Name] = v
		}
		t.Name = fmt.Sprintf("trial-%03d", i)
		if base.Name != "" {
			t.Name = base.Name + ":" + t.Name
		}
		tasks = append(tasks, t)
	}
	return tasks
}

func cloneTask(t Task) Task {
	p := make(map[string]float64, len(t.Params))
	for k, v := range t.Params {
		p[k] = v
	}
	t.Params = p
	return t
}
