// Package worksheet aggregates outstanding confirmed demand into the
// purchasing worksheet. The worksheet is a live query over current state,
// recomputed on every request; there is no cache to invalidate, so an order
// leaving CONFIRMED disappears from the very next call.
package worksheet

import (
	"sort"

	"order-workflow/internal/models"

	"github.com/google/uuid"
)

// Build groups the lines of confirmed orders by product, summing quantity and
// keeping a per-client breakdown for drill-down. Orders in any other state
// never contribute, no matter what the caller passes in.
func Build(orders []models.Order) []models.WorksheetEntry {
	byProduct := make(map[string]*models.WorksheetEntry)

	for _, order := range orders {
		if order.State != models.StateConfirmed {
			continue
		}
		for _, line := range order.Lines {
			key := line.ProductID.String()
			entry, ok := byProduct[key]
			if !ok {
				entry = &models.WorksheetEntry{
					ProductID: line.ProductID,
					PerClient: make(map[uuid.UUID]int),
				}
				byProduct[key] = entry
			}
			entry.TotalQuantity += line.Quantity
			entry.PerClient[order.ClientID] += line.Quantity
		}
	}

	entries := make([]models.WorksheetEntry, 0, len(byProduct))
	for _, entry := range byProduct {
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ProductID.String() < entries[j].ProductID.String()
	})
	return entries
}
