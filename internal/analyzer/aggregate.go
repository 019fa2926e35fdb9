package analyzer

import (
	"slices"

	"pyhabit/internal/models"
)

// Aggregate merges native and bridged findings and orders them by category
// rank, then line. Equal keys keep their input order. Duplicates between the
// two sources are kept.
func Aggregate(native, bridged []models.Finding) []models.Finding {
	all := make([]models.Finding, 0, len(native)+len(bridged))
	all = append(all, native...)
	all = append(all, bridged...)

	slices.SortStableFunc(all, func(a, b models.Finding) int {
		if d := a.Category.Rank() - b.Category.Rank(); d != 0 {
			return d
		}
		return a.Line - b.Line
	})
	return all
}
