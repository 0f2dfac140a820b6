// Package numerator defines how order numbers are generated.
package numerator

import (
	"fmt"
	"strings"
)

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict hits the sequence for every number. Gap-free when the
	// caller's transaction commits.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges of numbers in memory. Faster, may leave
	// gaps after a restart.
	StrategyCached
)

// ParseStrategy maps a configuration value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return StrategyStrict, nil
	case "cached":
		return StrategyCached, nil
	}
	return StrategyStrict, fmt.Errorf("unknown numerator strategy %q", s)
}

// Options configuration for number generation.
type Options struct {
	Strategy Strategy
	// RangeSize is the number of values reserved at once by StrategyCached.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{
		Strategy: StrategyStrict,
	}
}

// Config holds numbering configuration of one order family.
type Config struct {
	// Prefix added to all numbers (e.g. "CG", "XS")
	Prefix string

	// IncludeYear adds year to the number and resets the sequence yearly
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int
}

// DefaultConfig returns PREFIX-YYYY-NNNNN numbering.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
	}
}

// Order family prefixes.
const (
	PrefixPurchase   = "CG"
	PrefixSales      = "XS"
	PrefixDyeing     = "RS"
	PrefixAdjustment = "TZ"
	PrefixCycleCount = "PD"
)
