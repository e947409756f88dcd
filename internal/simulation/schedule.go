package simulation

import (
	"sort"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/random"
)

type weekKey struct {
	year       int
	week       int
	customerID int64
}

// Schedule marks, per ISO week and customer, the weekdays on which the customer shops.
type Schedule struct {
	days map[weekKey][]int
}

// weekday returns 0 for Monday through 6 for Sunday.
func weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func mondayOf(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return d.AddDate(0, 0, -weekday(d))
}

// BuildSchedule draws, for every ISO week touching [start, end] and every
// customer in order, a visit count and that many distinct weekdays.
func BuildSchedule(rng *random.Rand, start, end time.Time, customers []domain.Customer, visits domain.IntRange) *Schedule {
	s := &Schedule{days: make(map[weekKey][]int)}
	for wk := mondayOf(start); !wk.After(end); wk = wk.AddDate(0, 0, 7) {
		year, week := wk.ISOWeek()
		for _, c := range customers {
			count := visits.Clamp(rng.Between(visits.Min, visits.Max))
			if count > 7 {
				count = 7
			}
			days := rng.Sample(7, count)
			sort.Ints(days)
			s.days[weekKey{year, week, c.ID}] = days
		}
	}
	return s
}

// Weekdays returns the active weekdays (0 = Monday) for the customer in day's ISO week.
func (s *Schedule) Weekdays(customerID int64, day time.Time) []int {
	year, week := day.ISOWeek()
	return s.days[weekKey{year, week, customerID}]
}

// Active reports whether the customer shops on day.
func (s *Schedule) Active(customerID int64, day time.Time) bool {
	wd := weekday(day)
	for _, d := range s.Weekdays(customerID, day) {
		if d == wd {
			return true
		}
	}
	return false
}
