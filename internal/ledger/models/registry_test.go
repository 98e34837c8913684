package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryFee(t *testing.T) {
	tests := []struct {
		name   string
		bps    uint16
		amount uint64
		want   uint64
	}{
		{"fifty bps of one hundred million", 50, 100_000_000, 500_000},
		{"zero fee", 0, 100_000_000, 0},
		{"full fee", MaxFeeBps, 123_456, 123_456},
		{"floors sub-unit fees to zero", 50, 199, 0},
		{"floors fractional fee", 25, 100_001, 250},
		{"zero amount", 50, 0, 0},
		{"max amount does not overflow", 50, math.MaxUint64, math.MaxUint64 / 10000 * 50 + math.MaxUint64%10000*50/10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &GlobalRegistry{PlatformFeeBps: tt.bps}
			assert.Equal(t, tt.want, g.Fee(tt.amount))
		})
	}
}

// The fee never exceeds the amount, so fee plus remainder always disburses
// exactly what was locked.
func TestRegistryFeeNeverExceedsAmount(t *testing.T) {
	g := &GlobalRegistry{PlatformFeeBps: MaxFeeBps}
	for _, amount := range []uint64{0, 1, 9999, 10000, 10001, math.MaxUint64} {
		assert.LessOrEqual(t, g.Fee(amount), amount)
	}
}
