// Package numerator implements order numbering over a sequence store.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	core "millstock/internal/core/numerator"
)

// Sequencer is the storage port behind the service.
// Next adds step to the sequence stored under key and returns the new value
// (creating the sequence at step when absent).
type Sequencer interface {
	Next(ctx context.Context, key string, step int64) (int64, error)
	Set(ctx context.Context, key string, value int64) error
}

type cachedRange struct {
	current int64
	max     int64
}

// Service provides order numbering.
type Service struct {
	seq Sequencer

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange

	// override replaces the strategy requested by callers when set
	override *core.Strategy
}

var _ core.Generator = (*Service)(nil)

// New creates a numerator service.
func New(seq Sequencer) *Service {
	return &Service{
		seq:    seq,
		ranges: make(map[string]*cachedRange),
	}
}

// WithStrategy makes every family use strategy regardless of what it asks for.
func (s *Service) WithStrategy(strategy core.Strategy) *Service {
	s.override = &strategy
	return s
}

// GetNextNumber generates the next number: PREFIX-YEAR-XXXXX.
func (s *Service) GetNextNumber(ctx context.Context, cfg core.Config, opts *core.Options, period time.Time) (string, error) {
	if s == nil || s.seq == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if opts == nil {
		opts = core.DefaultOptions()
	}

	key := buildKey(cfg, period)

	var (
		num int64
		err error
	)
	strategy := opts.Strategy
	if s.override != nil {
		strategy = *s.override
	}

	switch strategy {
	case core.StrategyCached:
		num, err = s.getNextCached(ctx, key, opts)
	default:
		num, err = s.seq.Next(ctx, key, 1)
		if err != nil {
			err = fmt.Errorf("strict next: %w", err)
		}
	}
	if err != nil {
		return "", err
	}

	return formatNumber(cfg, period, num), nil
}

// getNextCached hands out numbers from a reserved range, reserving a new one
// when exhausted.
func (s *Service) getNextCached(ctx context.Context, key string, opts *core.Options) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, ok := s.ranges[key]
	if !ok {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		size := opts.RangeSize
		if size <= 0 {
			size = 50
		}

		newMax, err := s.seq.Next(ctx, key, size)
		if err != nil {
			return 0, fmt.Errorf("reserve range: %w", err)
		}
		// The reserved range is (newMax-size, newMax].
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber makes value the next number handed out.
func (s *Service) SetNextNumber(ctx context.Context, cfg core.Config, period time.Time, value int64) error {
	key := buildKey(cfg, period)
	if err := s.seq.Set(ctx, key, value-1); err != nil {
		return fmt.Errorf("set sequence: %w", err)
	}

	s.cacheMu.Lock()
	delete(s.ranges, key)
	s.cacheMu.Unlock()
	return nil
}

func buildKey(cfg core.Config, period time.Time) string {
	if cfg.IncludeYear {
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	}
	return cfg.Prefix
}

func formatNumber(cfg core.Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}

	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}

// ParseNumber extracts the numeric part of a formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	i := strings.LastIndex(formatted, "-")
	if i < 0 {
		return -1
	}
	num, err := strconv.ParseInt(formatted[i+1:], 10, 64)
	if err != nil {
		return -1
	}
	return num
}
