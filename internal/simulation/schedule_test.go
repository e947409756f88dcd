package simulation

import (
	"sort"
	"testing"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildScheduleDrawsDistinctSortedWeekdays(t *testing.T) {
	customers := []domain.Customer{{ID: 1}, {ID: 2}, {ID: 3}}
	start := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	visits := domain.IntRange{Min: 2, Max: 5}

	s := BuildSchedule(random.New(42), start, end, customers, visits)

	for day := start; !day.After(end); day = day.AddDate(0, 0, 7) {
		for _, c := range customers {
			days := s.Weekdays(c.ID, day)
			require.GreaterOrEqual(t, len(days), visits.Min)
			require.LessOrEqual(t, len(days), visits.Max)
			assert.True(t, sort.IntsAreSorted(days))
			seen := map[int]bool{}
			for _, d := range days {
				assert.False(t, seen[d])
				assert.True(t, d >= 0 && d <= 6)
				seen[d] = true
			}
		}
	}
}

func TestBuildScheduleCoversFinalPartialWeek(t *testing.T) {
	customers := []domain.Customer{{ID: 1}}
	// Thursday to the Monday after next: three ISO weeks.
	start := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	s := BuildSchedule(random.New(1), start, end, customers, domain.IntRange{Min: 7, Max: 7})

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		assert.True(t, s.Active(1, day), "day %s", day.Format(time.DateOnly))
	}
	assert.False(t, s.Active(2, start))
}

func TestWeekdayStartsMonday(t *testing.T) {
	monday := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, weekday(monday))
	assert.Equal(t, 6, weekday(monday.AddDate(0, 0, 6)))
	assert.Equal(t, monday, mondayOf(monday.AddDate(0, 0, 3)))
}
