package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CashBreakout/internal/domain/models"
	"CashBreakout/pkg/logger"
)

func newTestAggregator(stream *memStream, snap *memSnap) (*Aggregator, *time.Time) {
	clock := time.Date(2026, 8, 28, 9, 30, 5, 0, time.UTC)
	a := NewAggregator(
		map[string]string{"11536": "TCS-EQ"},
		time.UTC,
		stream, snap, nil, nopMetrics{}, logger.Nop(),
	)
	a.now = func() time.Time { return clock }
	return a, &clock
}

func TestAggregatorBuildsCandleAcrossMinuteBoundary(t *testing.T) {
	stream := &memStream{}
	snap := &memSnap{}
	agg, clock := newTestAggregator(stream, snap)
	ctx := context.Background()

	ticks := []struct {
		offset time.Duration
		price  float64
		vol    float64
	}{
		{0, 100.0, 1000},
		{10 * time.Second, 102.5, 1400},
		{20 * time.Second, 99.2, 1900},
		{40 * time.Second, 101.0, 2500},
	}
	base := *clock
	for _, tk := range ticks {
		*clock = base.Add(tk.offset)
		agg.OnTick(ctx, models.Tick{Token: "11536", LastTradedPrice: tk.price, CumulativeVolume: tk.vol})
	}

	// Nothing publishes until a tick lands in the next minute.
	require.Empty(t, stream.entries)

	*clock = base.Add(time.Minute)
	agg.OnTick(ctx, models.Tick{Token: "11536", LastTradedPrice: 101.5, CumulativeVolume: 2600})

	require.Len(t, stream.entries, 1)
	c := stream.entries[0].Candle
	assert.Equal(t, "TCS-EQ", c.Symbol)
	assert.Equal(t, 100.0, c.Open)
	assert.Equal(t, 102.5, c.High)
	assert.Equal(t, 99.2, c.Low)
	assert.Equal(t, 101.0, c.Close)
	assert.Equal(t, 1500.0, c.Volume) // cumulative delta within the minute
	assert.Equal(t, base.Truncate(time.Minute), c.Bucket)
}

func TestAggregatorSnapshotReflectsNewMinute(t *testing.T) {
	stream := &memStream{}
	snap := &memSnap{}
	agg, clock := newTestAggregator(stream, snap)
	ctx := context.Background()

	base := *clock
	agg.OnTick(ctx, models.Tick{Token: "11536", LastTradedPrice: 100, CumulativeVolume: 10})

	*clock = base.Add(time.Minute)
	agg.OnTick(ctx, models.Tick{Token: "11536", LastTradedPrice: 105, CumulativeVolume: 20})

	// The snapshot written at the boundary already belongs to the new
	// minute: its extremes reset to the boundary tick.
	require.Equal(t, 1, snap.writes)
	q := snap.quotes["TCS-EQ"]
	assert.Equal(t, 105.0, q.LTP)
	assert.Equal(t, 105.0, q.High)
	assert.Equal(t, 105.0, q.Low)
}

func TestAggregatorDiscardsMalformedTicks(t *testing.T) {
	stream := &memStream{}
	agg, clock := newTestAggregator(stream, &memSnap{})
	ctx := context.Background()

	base := *clock
	agg.OnTick(ctx, models.Tick{Token: "99999", LastTradedPrice: 50, CumulativeVolume: 1}) // unknown token
	agg.OnTick(ctx, models.Tick{Token: "11536", LastTradedPrice: 0, CumulativeVolume: 1})  // zero price

	*clock = base.Add(time.Minute)
	agg.OnTick(ctx, models.Tick{Token: "11536", LastTradedPrice: 100, CumulativeVolume: 5})

	// No buffer ever formed, so the boundary tick opens the first bucket
	// instead of flushing one.
	assert.Empty(t, stream.entries)
}

func TestAggregatorDropsCandleWhenPublishFails(t *testing.T) {
	stream := &memStream{pubErr: errors.New("stream down")}
	snap := &memSnap{}
	agg, clock := newTestAggregator(stream, snap)
	ctx := context.Background()

	base := *clock
	agg.OnTick(ctx, models.Tick{Token: "11536", LastTradedPrice: 100, CumulativeVolume: 10})
	*clock = base.Add(time.Minute)
	agg.OnTick(ctx, models.Tick{Token: "11536", LastTradedPrice: 101, CumulativeVolume: 20})

	// Candle lost, snapshot untouched, and the new bucket keeps filling.
	assert.Equal(t, 0, snap.writes)
	*clock = base.Add(2 * time.Minute)
	stream.pubErr = nil
	agg.OnTick(ctx, models.Tick{Token: "11536", LastTradedPrice: 102, CumulativeVolume: 30})
	require.Len(t, stream.entries, 1)
	assert.Equal(t, 101.0, stream.entries[0].Candle.Open)
}
