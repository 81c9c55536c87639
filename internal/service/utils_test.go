package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampPage(t *testing.T) {
	cases := []struct {
		name             string
		limit, offset    int
		wantLim, wantOff int32
	}{
		{"defaults", 0, -5, defaultPageLimit, 0},
		{"caps_limit", 10_000, 20, maxPageLimit, 20},
		{"offset_at_int32_max", 50, math.MaxInt32, 50, math.MaxInt32},
		{"offset_past_int32_does_not_wrap", 50, 1 << 31, 50, math.MaxInt32},
		{"offset_far_past_int32", 50, 1<<32 + 7, 50, math.MaxInt32},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			limit, offset := clampPage(tc.limit, tc.offset)
			assert.Equal(t, tc.wantLim, limit)
			assert.Equal(t, tc.wantOff, offset)
		})
	}
}
