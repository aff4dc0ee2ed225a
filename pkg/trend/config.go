package trend

import (
	"errors"
	"fmt"
	"math"
)

// Weights are the composite ranking coefficients.
type Weights struct {
	Discussion    float64 `yaml:"discussion" json:"discussion"`
	Video         float64 `yaml:"video" json:"video"`
	Trends        float64 `yaml:"trends" json:"trends"`
	CrossPlatform float64 `yaml:"cross_platform" json:"cross_platform"`
}

// Sum returns the total of all four weights.
func (w Weights) Sum() float64 {
	return w.Discussion + w.Video + w.Trends + w.CrossPlatform
}

// Config controls matching and ranking. The weighting policy has changed
// over time, so none of these values are compiled into the algorithm.
// Zero values mean "use the default".
type Config struct {
	Weights        Weights `yaml:"weights" json:"weights"`
	MatchThreshold float64 `yaml:"match_threshold" json:"match_threshold"`
	// TokenCutoff is the length words must exceed to count in overlap.
	TokenCutoff int `yaml:"token_cutoff" json:"token_cutoff"`
	TopN        int `yaml:"top_n" json:"top_n"`
}

// DefaultConfig leans toward divisive topics while still rewarding
// topics that show up on more than one platform.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Discussion:    0.35,
			Video:         0.20,
			Trends:        0.20,
			CrossPlatform: 0.25,
		},
		MatchThreshold: 0.4,
		TokenCutoff:    3,
		TopN:           15,
	}
}

type namedWeight struct {
	name  string
	value float64
}

func (w Weights) named() []namedWeight {
	return []namedWeight{
		{"discussion", w.Discussion},
		{"video", w.Video},
		{"trends", w.Trends},
		{"cross_platform", w.CrossPlatform},
	}
}

// valid reports whether every weight is a finite non-negative number and
// at least one is positive.
func (w Weights) valid() bool {
	for _, nw := range w.named() {
		if !validWeight(nw.value) {
			return false
		}
	}
	return w.Sum() > 0
}

func validWeight(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validThreshold(v float64) bool {
	return v > 0 && v < 1
}

// Validate reports every invalid field at once, in field order.
func (c Config) Validate() error {
	var errs []error
	for _, nw := range c.Weights.named() {
		if !validWeight(nw.value) {
			errs = append(errs, fmt.Errorf("weight %s must be a non-negative number, got %v", nw.name, nw.value))
		}
	}
	if c.Weights.Sum() == 0 {
		errs = append(errs, errors.New("at least one weight must be positive"))
	}
	if !validThreshold(c.MatchThreshold) {
		errs = append(errs, fmt.Errorf("match_threshold must be in (0,1), got %v", c.MatchThreshold))
	}
	if c.TokenCutoff < 0 {
		errs = append(errs, fmt.Errorf("token_cutoff must be >= 0, got %d", c.TokenCutoff))
	}
	if c.TopN < 1 {
		errs = append(errs, fmt.Errorf("top_n must be >= 1, got %d", c.TopN))
	}
	return errors.Join(errs...)
}

// withDefaults replaces unset or unusable fields with DefaultConfig values.
// A zero threshold or cutoff counts as unset. Weights are replaced as a set
// when any of them is invalid or none is positive.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if !c.Weights.valid() {
		c.Weights = d.Weights
	}
	if !validThreshold(c.MatchThreshold) {
		c.MatchThreshold = d.MatchThreshold
	}
	if c.TokenCutoff <= 0 {
		c.TokenCutoff = d.TokenCutoff
	}
	if c.TopN <= 0 {
		c.TopN = d.TopN
	}
	return c
}
