package practice

import (
	"sangha-backend/internal/models"
)

// Balance sums every entry's points. The entry type is informational only.
func Balance(entries []models.SpiritBankLogEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Points
	}
	return total
}

// CanAfford reports whether the ledger covers cost.
func CanAfford(entries []models.SpiritBankLogEntry, cost int64) bool {
	return Balance(entries) >= cost
}

// EntriesWithinWindow keeps the entries created strictly inside the circle's window.
func EntriesWithinWindow(entries []models.SpiritBankLogEntry, circle models.Circle) []models.SpiritBankLogEntry {
	within := make([]models.SpiritBankLogEntry, 0)
	for _, e := range entries {
		if e.Created.After(circle.StartTime) && e.Created.Before(circle.EndTime) {
			within = append(within, e)
		}
	}
	return within
}

// PointsWithinWindow is the points a circle generated for a receipt.
func PointsWithinWindow(entries []models.SpiritBankLogEntry, circle models.Circle) int64 {
	return Balance(EntriesWithinWindow(entries, circle))
}
