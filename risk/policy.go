package risk

import (
	"errors"
	"fmt"
	"math"
)

// StopEpsilon is the minimum relative distance kept between the entry price
// and the initial stop or target.
const StopEpsilon = 0.001

// Config is the immutable risk configuration for one simulation run. It is
// passed by value; nothing in the engine mutates it once a run has started.
type Config struct {
	// Position sizing
	UsePositionSizing  bool    `json:"use_position_sizing" yaml:"use_position_sizing"`
	MaxPositionSizePct float64 `json:"max_position_size_pct" yaml:"max_position_size_pct"` // 0.20
	MinPositionSizePct float64 `json:"min_position_size_pct" yaml:"min_position_size_pct"` // 0.01, 0 disables
	UseRiskPerTrade    bool    `json:"use_risk_per_trade" yaml:"use_risk_per_trade"`
	RiskPerTradePct    float64 `json:"risk_per_trade_pct" yaml:"risk_per_trade_pct"` // 0.01

	// Exposure limits
	MaxPortfolioRiskPct float64 `json:"max_portfolio_risk_pct" yaml:"max_portfolio_risk_pct"` // 0.06
	MaxOpenPositions    int     `json:"max_open_positions" yaml:"max_open_positions"`         // 5

	// Stops and targets
	UseStopLoss       bool    `json:"use_stop_loss" yaml:"use_stop_loss"`
	UseTakeProfit     bool    `json:"use_take_profit" yaml:"use_take_profit"`
	StopLossPct       float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`             // 0.02
	ProfitTargetRatio float64 `json:"profit_target_ratio" yaml:"profit_target_ratio"` // 2.0

	UseTrailingStop       bool    `json:"use_trailing_stop" yaml:"use_trailing_stop"`
	TrailingActivationPct float64 `json:"trailing_activation_pct" yaml:"trailing_activation_pct"` // 0.02
	TrailingDistancePct   float64 `json:"trailing_distance_pct" yaml:"trailing_distance_pct"`     // 0.015

	// Circuit breakers. Advisory only: breaches are reported, never enforced.
	MaxDrawdownPct  float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`     // 0.20
	MaxDailyLossPct float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct"` // 0.03
}

// DefaultConfig mirrors the defaults of the configuration wizard.
func DefaultConfig() Config {
	return Config{
		UsePositionSizing:     true,
		MaxPositionSizePct:    0.20,
		MinPositionSizePct:    0.0,
		UseRiskPerTrade:       false,
		RiskPerTradePct:       0.01,
		MaxPortfolioRiskPct:   0.06,
		MaxOpenPositions:      5,
		UseStopLoss:           true,
		UseTakeProfit:         true,
		StopLossPct:           0.02,
		ProfitTargetRatio:     2.0,
		UseTrailingStop:       false,
		TrailingActivationPct: 0.02,
		TrailingDistancePct:   0.015,
		MaxDrawdownPct:        0.20,
		MaxDailyLossPct:       0.03,
	}
}

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid risk config")

func pct(name string, v float64, allowZero bool) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be finite", ErrInvalidConfig, name)
	}
	if v < 0 || v > 1 || (!allowZero && v == 0) {
		if allowZero {
			return fmt.Errorf("%w: %s must be between 0 and 1", ErrInvalidConfig, name)
		}
		return fmt.Errorf("%w: %s must be in (0, 1]", ErrInvalidConfig, name)
	}
	return nil
}

// Validate checks ranges. A config that fails validation must not be used
// to start a run.
func (c Config) Validate() error {
	if c.UsePositionSizing {
		if err := pct("max_position_size_pct", c.MaxPositionSizePct, false); err != nil {
			return err
		}
		if err := pct("min_position_size_pct", c.MinPositionSizePct, true); err != nil {
			return err
		}
		if c.MinPositionSizePct > c.MaxPositionSizePct {
			return fmt.Errorf("%w: min_position_size_pct exceeds max_position_size_pct", ErrInvalidConfig)
		}
		if c.UseRiskPerTrade {
			if err := pct("risk_per_trade_pct", c.RiskPerTradePct, false); err != nil {
				return err
			}
		}
	}
	if err := pct("max_portfolio_risk_pct", c.MaxPortfolioRiskPct, true); err != nil {
		return err
	}
	if c.MaxOpenPositions <= 0 {
		return fmt.Errorf("%w: max_open_positions must be positive", ErrInvalidConfig)
	}
	if err := pct("stop_loss_pct", c.StopLossPct, true); err != nil {
		return err
	}
	if math.IsNaN(c.ProfitTargetRatio) || c.ProfitTargetRatio < 0 {
		return fmt.Errorf("%w: profit_target_ratio must be non-negative", ErrInvalidConfig)
	}
	if c.UseTrailingStop {
		if err := pct("trailing_activation_pct", c.TrailingActivationPct, true); err != nil {
			return err
		}
		if err := pct("trailing_distance_pct", c.TrailingDistancePct, false); err != nil {
			return err
		}
	}
	if err := pct("max_drawdown_pct", c.MaxDrawdownPct, true); err != nil {
		return err
	}
	if err := pct("max_daily_loss_pct", c.MaxDailyLossPct, true); err != nil {
		return err
	}
	return nil
}

// CanOpenNewPosition reports whether another position fits under the cap.
func CanOpenNewPosition(openCount int, cfg Config) bool {
	return openCount < cfg.MaxOpenPositions
}
