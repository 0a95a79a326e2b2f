// Package analyzer provides alert triage configuration options.
package analyzer

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/aegis/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains routing and expert analysis configuration.
type Options struct {
	// KeywordWeight weights the keyword score in the combined routing score.
	KeywordWeight float64 `json:"keyword-weight" mapstructure:"keyword-weight"`

	// PatternWeight weights the regex pattern score in the combined routing score.
	PatternWeight float64 `json:"pattern-weight" mapstructure:"pattern-weight"`

	// HintBonus is added to a category score when the alert type hints at it.
	HintBonus float64 `json:"hint-bonus" mapstructure:"hint-bonus"`

	// MinConfidence is the score threshold below which the reported
	// routing confidence is scaled down.
	MinConfidence float64 `json:"min-confidence" mapstructure:"min-confidence"`

	// HighRiskThreshold marks findings at or above this risk score as high threat.
	HighRiskThreshold int `json:"high-risk-threshold" mapstructure:"high-risk-threshold"`

	// MediumRiskThreshold marks findings at or above this risk score as medium threat.
	MediumRiskThreshold int `json:"medium-risk-threshold" mapstructure:"medium-risk-threshold"`

	// HistoryLimit bounds the in-memory analysis history.
	HistoryLimit int `json:"history-limit" mapstructure:"history-limit"`

	// BatchWorkers sizes the worker pool for batch analysis.
	BatchWorkers int `json:"batch-workers" mapstructure:"batch-workers"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		KeywordWeight:       0.6,
		PatternWeight:       0.4,
		HintBonus:           0.3,
		MinConfidence:       0.3,
		HighRiskThreshold:   8,
		MediumRiskThreshold: 4,
		HistoryLimit:        1000,
		BatchWorkers:        8,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.Float64Var(&o.KeywordWeight, options.Join(prefixes...)+"analyzer.keyword-weight", o.KeywordWeight, "Weight of the keyword score in routing.")
	fs.Float64Var(&o.PatternWeight, options.Join(prefixes...)+"analyzer.pattern-weight", o.PatternWeight, "Weight of the regex pattern score in routing.")
	fs.Float64Var(&o.HintBonus, options.Join(prefixes...)+"analyzer.hint-bonus", o.HintBonus, "Score bonus when the alert type hints at a category.")
	fs.Float64Var(&o.MinConfidence, options.Join(prefixes...)+"analyzer.min-confidence", o.MinConfidence, "Floor for reported routing confidence.")
	fs.IntVar(&o.HighRiskThreshold, options.Join(prefixes...)+"analyzer.high-risk-threshold", o.HighRiskThreshold, "Risk score at or above which threat level is high.")
	fs.IntVar(&o.MediumRiskThreshold, options.Join(prefixes...)+"analyzer.medium-risk-threshold", o.MediumRiskThreshold, "Risk score at or above which threat level is medium.")
	fs.IntVar(&o.HistoryLimit, options.Join(prefixes...)+"analyzer.history-limit", o.HistoryLimit, "Maximum analysis records kept in memory.")
	fs.IntVar(&o.BatchWorkers, options.Join(prefixes...)+"analyzer.batch-workers", o.BatchWorkers, "Worker pool size for batch analysis.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.KeywordWeight < 0 || o.PatternWeight < 0 {
		errs = append(errs, fmt.Errorf("score weights cannot be negative"))
	}
	if o.KeywordWeight+o.PatternWeight == 0 {
		errs = append(errs, fmt.Errorf("at least one score weight must be positive"))
	}
	if o.MinConfidence < 0 || o.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("min-confidence must be within [0, 1]"))
	}
	if o.HighRiskThreshold < o.MediumRiskThreshold {
		errs = append(errs, fmt.Errorf("high-risk-threshold cannot be below medium-risk-threshold"))
	}
	if o.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("history-limit must be positive"))
	}
	if o.BatchWorkers <= 0 {
		errs = append(errs, fmt.Errorf("batch-workers must be positive"))
	}
	return errs
}
