package numerator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "millstock/internal/core/numerator"
)

type fakeSequencer struct {
	mu    sync.Mutex
	vals  map[string]int64
	calls int
}

func newFakeSequencer() *fakeSequencer {
	return &fakeSequencer{vals: make(map[string]int64)}
}

func (f *fakeSequencer) Next(_ context.Context, key string, step int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.vals[key] += step
	return f.vals[key], nil
}

func (f *fakeSequencer) Set(_ context.Context, key string, value int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vals[key] = value
	return nil
}

var period = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	seq := newFakeSequencer()
	svc := New(seq)
	ctx := context.Background()
	cfg := core.DefaultConfig(core.PrefixSales)

	num, err := svc.GetNextNumber(ctx, cfg, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "XS-2026-00001", num)

	num, err = svc.GetNextNumber(ctx, cfg, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "XS-2026-00002", num)
	assert.Equal(t, 2, seq.calls)

	// A new year starts a new sequence.
	num, err = svc.GetNextNumber(ctx, cfg, nil, period.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "XS-2027-00001", num)
}

func TestGetNextNumber_Cached(t *testing.T) {
	seq := newFakeSequencer()
	svc := New(seq)
	ctx := context.Background()
	cfg := core.DefaultConfig(core.PrefixPurchase)
	opts := &core.Options{Strategy: core.StrategyCached, RangeSize: 10}

	for i := 1; i <= 12; i++ {
		num, err := svc.GetNextNumber(ctx, cfg, opts, period)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("CG-2026-%05d", i), num)
	}
	// Two ranges reserved for twelve numbers.
	assert.Equal(t, 2, seq.calls)
}

func TestGetNextNumber_CachedConcurrent(t *testing.T) {
	svc := New(newFakeSequencer())
	ctx := context.Background()
	cfg := core.DefaultConfig(core.PrefixDyeing)
	opts := &core.Options{Strategy: core.StrategyCached, RangeSize: 7}

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := svc.GetNextNumber(ctx, cfg, opts, period)
			assert.NoError(t, err)
			mu.Lock()
			seen[num] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestSetNextNumber_InvalidatesCache(t *testing.T) {
	svc := New(newFakeSequencer())
	ctx := context.Background()
	cfg := core.DefaultConfig(core.PrefixAdjustment)
	opts := &core.Options{Strategy: core.StrategyCached, RangeSize: 5}

	_, err := svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)

	require.NoError(t, svc.SetNextNumber(ctx, cfg, period, 100))

	num, err := svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "TZ-2026-00100", num)
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, int64(42), ParseNumber("XS-2026-00042"))
	assert.Equal(t, int64(7), ParseNumber("PD-00007"))
	assert.Equal(t, int64(-1), ParseNumber("garbage"))
}

func TestWithStrategy_OverridesRequest(t *testing.T) {
	seq := newFakeSequencer()
	svc := New(seq).WithStrategy(core.StrategyCached)
	ctx := context.Background()
	cfg := core.DefaultConfig(core.PrefixDyeing)

	for i := 0; i < 3; i++ {
		_, err := svc.GetNextNumber(ctx, cfg, &core.Options{Strategy: core.StrategyStrict}, period)
		require.NoError(t, err)
	}
	// One range of the default size covers all three.
	assert.Equal(t, 1, seq.calls)
}
