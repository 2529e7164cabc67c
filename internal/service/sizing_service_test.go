package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/fixedpoint"
)

const p = domain.Precision

func newSizing(max int64) *SizingService {
	prices := newMemPrices(domain.OraclePrice{MarketIndex: 0, Price: 50 * p})
	return NewSizingService(stubSizer{max: max}, prices, fixedpoint.Default())
}

func TestConvert(t *testing.T) {
	s := newSizing(0)
	tests := []struct {
		name    string
		req     ConvertRequest
		want    SizeQuote
		wantErr error
	}{
		{
			name: "size to notional",
			req:  ConvertRequest{Size: ptr(2 * p), Price: 50 * p},
			want: SizeQuote{Size: 2 * p, Notional: 100 * p, Price: 50 * p},
		},
		{
			name: "notional to size floors",
			req:  ConvertRequest{Notional: ptr(100 * p), Price: 30 * p},
			want: SizeQuote{Size: 3_333_333, Notional: 100 * p, Price: 30 * p},
		},
		{
			name: "zero price gives zero size",
			req:  ConvertRequest{Notional: ptr(100 * p)},
			want: SizeQuote{Notional: 100 * p},
		},
		{name: "both set", req: ConvertRequest{Size: ptr(p), Notional: ptr(p), Price: p}, wantErr: domain.ErrInvalidOrder},
		{name: "neither set", req: ConvertRequest{Price: p}, wantErr: domain.ErrInvalidOrder},
		{name: "negative price", req: ConvertRequest{Size: ptr(p), Price: -1}, wantErr: domain.ErrInvalidOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Convert(tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSizeForPercentage(t *testing.T) {
	s := newSizing(1000 * p)
	mq := MaxQuery{Wallet: "0xabc", MarketIndex: 0, Direction: domain.DirectionLong}

	tests := []struct {
		pct          int64
		wantSize     int64
		wantNotional int64
	}{
		{0, 0, 0},
		{25, 5 * p, 250 * p},
		{50, 10 * p, 500 * p},
		{100, 20 * p, 1000 * p},
		{150, 20 * p, 1000 * p},
	}
	for _, tt := range tests {
		got, err := s.SizeForPercentage(context.Background(), mq, tt.pct)
		require.NoError(t, err)
		assert.Equal(t, tt.wantSize, got.Size, "pct %d", tt.pct)
		assert.Equal(t, tt.wantNotional, got.Notional, "pct %d", tt.pct)
		assert.Equal(t, min(tt.pct, 100), got.Percentage, "pct %d", tt.pct)
		assert.Equal(t, 1000*p, got.MaxNotional)
		assert.Equal(t, 50*p, got.Price, "falls back to the oracle price")
	}
}

func TestPercentageForSize(t *testing.T) {
	s := newSizing(1000 * p)
	mq := MaxQuery{Wallet: "0xabc", Direction: domain.DirectionShort, Price: 50 * p}

	got, err := s.PercentageForSize(context.Background(), mq, 5*p)
	require.NoError(t, err)
	assert.Equal(t, int64(25), got.Percentage)
	assert.False(t, got.Clamped)

	got, err = s.PercentageForSize(context.Background(), mq, 30*p)
	require.NoError(t, err)
	assert.True(t, got.Clamped)
	assert.Equal(t, 20*p, got.Size)
	assert.Equal(t, 1000*p, got.Notional)
	assert.Equal(t, int64(100), got.Percentage)
}

func TestSizingErrors(t *testing.T) {
	s := newSizing(1000 * p)

	_, err := s.SizeForPercentage(context.Background(), MaxQuery{Direction: "up"}, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)

	_, err = s.SizeForPercentage(context.Background(), MaxQuery{MarketIndex: 9, Direction: domain.DirectionLong}, 10)
	assert.ErrorIs(t, err, domain.ErrMissingPrice)

	boom := errors.New("risk engine down")
	failing := NewSizingService(stubSizer{err: boom}, nil, fixedpoint.Default())
	_, err = failing.PercentageForSize(context.Background(), MaxQuery{Direction: domain.DirectionLong, Price: p}, p)
	assert.ErrorIs(t, err, boom)

	noCache := NewSizingService(stubSizer{max: p}, nil, fixedpoint.Default())
	_, err = noCache.SizeForPercentage(context.Background(), MaxQuery{Direction: domain.DirectionLong}, 10)
	assert.ErrorIs(t, err, domain.ErrMissingPrice)
}
