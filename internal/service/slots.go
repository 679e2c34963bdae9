package service

import "time"

const (
	DefaultSlotDays = 60
	MaxSlotDays     = 365
	slotsPerDay     = 100
)

// DayAvailability is one day of the mock availability feed.
type DayAvailability struct {
	Date           string `json:"date"`
	IsOpened       bool   `json:"is_opened"`
	IsAvailable    bool   `json:"is_available"`
	AvailableSlots int    `json:"available_slots"`
	TotalSlots     int    `json:"total_slots"`
}

// ClampSlotDays bounds a requested day count to [1, MaxSlotDays].
func ClampSlotDays(days int) int {
	if days < 1 {
		return 1
	}
	if days > MaxSlotDays {
		return MaxSlotDays
	}
	return days
}

// SlotAvailability produces deterministic mock availability starting at
// start.  Past days are closed; open days are bookable unless they fall on
// a Sunday or an odd day of the month.  Capacity is not enforced anywhere.
func SlotAvailability(start, today time.Time, days int) []DayAvailability {
	days = ClampSlotDays(days)
	start = truncateDay(start)
	today = truncateDay(today)
	out := make([]DayAvailability, 0, days)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		opened := !d.Before(today)
		available := opened && d.Weekday() != time.Sunday && d.Day()%2 == 0
		free := 0
		if available {
			free = (d.Day() % 4) * 25
		}
		out = append(out, DayAvailability{
			Date:           d.Format(dateLayout),
			IsOpened:       opened,
			IsAvailable:    available,
			AvailableSlots: free,
			TotalSlots:     slotsPerDay,
		})
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
