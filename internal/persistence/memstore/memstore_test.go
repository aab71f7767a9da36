package memstore

import (
	"context"
	"testing"

	"gridbot/internal/gridcore"
	"gridbot/internal/persistence"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveThenLoadGridSnapshot_RoundTrips(t *testing.T) {
	s := New()
	ctx := context.Background()

	snap := &persistence.Snapshot{
		SchemaVersion: persistence.CurrentSchemaVersion,
		Slots: []persistence.SlotRecord{
			{ID: "slot-0", Index: 0, Type: gridcore.Buy, State: gridcore.Active, Price: decimal.NewFromFloat(0.95), Size: decimal.NewFromInt(10), IdealSize: decimal.NewFromInt(10)},
		},
		UpdatedAtUnix: 1000,
	}
	require.NoError(t, s.SaveGridSnapshot(ctx, "bot-a", snap))

	loaded, err := s.LoadGridSnapshot(ctx, "bot-a")
	require.NoError(t, err)
	require.Len(t, loaded.Slots, 1)
	assert.Equal(t, "slot-0", loaded.Slots[0].ID)
	assert.True(t, loaded.Slots[0].Price.Equal(decimal.NewFromFloat(0.95)))
}

func TestLoadGridSnapshot_MissingBotErrors(t *testing.T) {
	s := New()
	_, err := s.LoadGridSnapshot(context.Background(), "nope")
	assert.Error(t, err)
}

func TestCacheFunds_RoundTrips(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.UpdateCacheFunds(ctx, "bot-a", persistence.CacheFunds{Buy: decimal.NewFromInt(5), Sell: decimal.NewFromInt(7)}))
	funds, err := s.LoadCacheFunds(ctx, "bot-a")
	require.NoError(t, err)
	assert.True(t, funds.Buy.Equal(decimal.NewFromInt(5)))
	assert.True(t, funds.Sell.Equal(decimal.NewFromInt(7)))
}

func TestFeesOwed_RoundTrips(t *testing.T) {
	s := New()
	ctx := context.Background()

	fees := map[gridcore.Side]decimal.Decimal{gridcore.SideBuy: decimal.NewFromFloat(0.01), gridcore.SideSell: decimal.NewFromFloat(0.02)}
	require.NoError(t, s.UpdateFeesOwed(ctx, "bot-a", fees))

	loaded, err := s.LoadFeesOwed(ctx, "bot-a")
	require.NoError(t, err)
	assert.True(t, loaded[gridcore.SideBuy].Equal(decimal.NewFromFloat(0.01)))
	assert.True(t, loaded[gridcore.SideSell].Equal(decimal.NewFromFloat(0.02)))
}

func TestRegenerationTrigger_SetAndClear(t *testing.T) {
	s := New()
	ctx := context.Background()

	has, err := s.HasRegenerationTrigger(ctx, "bot-a")
	require.NoError(t, err)
	assert.False(t, has)

	s.SetRegenerationTrigger("bot-a")
	has, err = s.HasRegenerationTrigger(ctx, "bot-a")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.ClearRegenerationTrigger(ctx, "bot-a"))
	has, err = s.HasRegenerationTrigger(ctx, "bot-a")
	require.NoError(t, err)
	assert.False(t, has)
}
