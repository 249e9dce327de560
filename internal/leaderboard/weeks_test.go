package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeeksDescendingAcrossYears(t *testing.T) {
	t.Parallel()

	weeks, err := Weeks(2022, 2023, 3)
	require.NoError(t, err)
	require.Len(t, weeks, 3+52)

	assert.Equal(t, []Week{{2023, 3}, {2023, 2}, {2023, 1}, {2022, 52}, {2022, 51}}, weeks[:5])
	assert.Equal(t, Week{Year: 2022, Week: 1}, weeks[len(weeks)-1])
}

func TestWeeksSingleYear(t *testing.T) {
	t.Parallel()

	weeks, err := Weeks(2024, 2024, 49)
	require.NoError(t, err)
	require.Len(t, weeks, 49)
	assert.Equal(t, Week{Year: 2024, Week: 49}, weeks[0])
	assert.Equal(t, Week{Year: 2024, Week: 1}, weeks[48])
}

func TestWeeksFullDefaultRange(t *testing.T) {
	t.Parallel()

	weeks, err := Weeks(2013, 2024, 49)
	require.NoError(t, err)
	assert.Len(t, weeks, 11*52+49)
	for i := 1; i < len(weeks); i++ {
		prev, cur := weeks[i-1], weeks[i]
		older := cur.Year < prev.Year || (cur.Year == prev.Year && cur.Week < prev.Week)
		require.Truef(t, older, "sequence not descending at %d: %v then %v", i, prev, cur)
	}
}

func TestWeeksValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                string
		start, end, endWeek int
	}{
		{"start after end", 2025, 2024, 10},
		{"week zero", 2020, 2024, 0},
		{"week 53", 2020, 2024, 53},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Weeks(tt.start, tt.end, tt.endWeek)
			assert.Error(t, err)
		})
	}
}

func TestSeqStopsEarly(t *testing.T) {
	t.Parallel()

	seq, err := Seq(2013, 2024, 49)
	require.NoError(t, err)

	var got []Week
	for w := range seq {
		got = append(got, w)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []Week{{2024, 49}, {2024, 48}}, got)
}

func TestURL(t *testing.T) {
	t.Parallel()

	w := Week{Year: 2024, Week: 7}
	assert.Equal(t, "https://www.producthunt.com/leaderboard/weekly/2024/7", URL("", w))
	assert.Equal(t, "http://127.0.0.1:8080/leaderboard/weekly/2024/7", URL("http://127.0.0.1:8080/", w))
	assert.Equal(t, "2024/07", w.String())
}
