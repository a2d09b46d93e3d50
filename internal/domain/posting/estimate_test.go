package posting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var estimateNow = time.Date(2024, time.June, 15, 14, 30, 0, 0, time.UTC)

func TestParseDisplayDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{"full date with dots", "2024.06.14", time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), true},
		{"two digit year", "24.06.01", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), true},
		{"extra tokens ignored", "2024.06.10 13:45", time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), true},
		{"korean suffixes", "2024년 5월 1일", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), true},
		{"month and day only", "6.13.", time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC), true},
		{"single token", "yesterday 3", time.Time{}, false},
		{"no digits", "last week", time.Time{}, false},
		{"empty", "", time.Time{}, false},
		{"month out of range", "2024.13.01", time.Time{}, false},
		{"day zero", "2024.06.00", time.Time{}, false},
		{"february 30th", "2024.02.30", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDisplayDate(tt.input, estimateNow)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestAgeInDays(t *testing.T) {
	assert.Equal(t, 0, AgeInDays(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), estimateNow))
	assert.Equal(t, 1, AgeInDays(time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), estimateNow))
	assert.Equal(t, 45, AgeInDays(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), estimateNow))
	assert.Equal(t, 0, AgeInDays(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), estimateNow), "future dates count as today")
	assert.Equal(t, 97, AgeInDays(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), estimateNow), "across leap day")
	assert.Equal(t, 118504, AgeInDays(time.Date(1700, 1, 1, 0, 0, 0, 0, time.UTC), estimateNow))
}

func TestEstimateDuration(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"today", "2024.06.15", 8},
		{"three days", "2024.06.12", 8},
		{"four days", "2024.06.11", 12},
		{"two weeks", "2024.06.01", 12},
		{"fifteen days", "2024.05.31", 18},
		{"sixty days", "2024.04.16", 18},
		{"sixty one days", "2024.04.15", 25},
		{"last year", "2023.01.01", 25},
		{"centuries ago", "1700.01.01", 25},
		{"three digit year", "123 4 5", 25},
		{"future", "2024.12.01", 8},
		{"unparseable", "a while ago", FallbackEstimateSeconds},
		{"invalid calendar date", "2024.02.31", FallbackEstimateSeconds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateDuration(tt.input, estimateNow))
		})
	}
}
