package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		page, size         int
		wantOffset, wantLn int
	}{
		{page: 1, size: 10, wantOffset: 0, wantLn: 10},
		{page: 3, size: 10, wantOffset: 20, wantLn: 10},
		{page: 0, size: 0, wantOffset: 0, wantLn: DefaultPageSize},
		{page: 2, size: 1000, wantOffset: MaxPageSize, wantLn: MaxPageSize},
	}
	for _, tt := range tests {
		off, lim := Calculate(tt.page, tt.size)
		assert.Equal(t, tt.wantOffset, off)
		assert.Equal(t, tt.wantLn, lim)
	}
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 5, ParseIntDefault("", 5))
	assert.Equal(t, 5, ParseIntDefault("x", 5))
	assert.Equal(t, 7, ParseIntDefault("7", 5))
}

func TestMeta(t *testing.T) {
	m := Meta(2, 10, 10, 25)
	assert.Equal(t, int64(3), m.TotalPages)
	assert.True(t, m.HasPrev)
	assert.True(t, m.HasNext)

	m = Meta(3, 20, 10, 25)
	assert.False(t, m.HasNext)
}
