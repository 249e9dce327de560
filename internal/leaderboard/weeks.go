package leaderboard

import (
	"fmt"
	"iter"
)

// WeeksPerYear is the number of weekly leaderboards visited per calendar year.
const WeeksPerYear = 52

// Seq yields every (year, week) pair between startYear and endYear, newest
// first. The end year starts at endWeek; every earlier year starts at week 52.
func Seq(startYear, endYear, endWeek int) (iter.Seq[Week], error) {
	if startYear > endYear {
		return nil, fmt.Errorf("start year %d is after end year %d", startYear, endYear)
	}
	if endWeek < 1 || endWeek > WeeksPerYear {
		return nil, fmt.Errorf("end week %d outside 1..%d", endWeek, WeeksPerYear)
	}
	return func(yield func(Week) bool) {
		for year := endYear; year >= startYear; year-- {
			first := WeeksPerYear
			if year == endYear {
				first = endWeek
			}
			for week := first; week >= 1; week-- {
				if !yield(Week{Year: year, Week: week}) {
					return
				}
			}
		}
	}, nil
}

// Weeks materializes Seq.
func Weeks(startYear, endYear, endWeek int) ([]Week, error) {
	seq, err := Seq(startYear, endYear, endWeek)
	if err != nil {
		return nil, err
	}
	out := make([]Week, 0, (endYear-startYear)*WeeksPerYear+endWeek)
	for w := range seq {
		out = append(out, w)
	}
	return out, nil
}
