package conversation

import (
	"fmt"
	"time"
)

// NoSlotsLeft is the single entry returned when every fallback slot has passed.
const NoSlotsLeft = "No slots left today"

const (
	firstSlotHour = 9
	lastSlotHour  = 16
)

// FallbackSlots builds the half-hour ladder 09:00..16:30 used when the backend
// opens the time picker without a slot list. When day falls on the same
// calendar day as now, every slot in an hour at or before the current hour is
// dropped.
func FallbackSlots(now, day time.Time) []string {
	ny, nm, nd := now.Date()
	dy, dm, dd := day.In(now.Location()).Date()
	sameDay := ny == dy && nm == dm && nd == dd

	slots := make([]string, 0, 2*(lastSlotHour-firstSlotHour+1))
	for hour := firstSlotHour; hour <= lastSlotHour; hour++ {
		if sameDay && hour <= now.Hour() {
			continue
		}
		slots = append(slots, fmt.Sprintf("%02d:00", hour), fmt.Sprintf("%02d:30", hour))
	}
	if len(slots) == 0 {
		return []string{NoSlotsLeft}
	}
	return slots
}
