package exporter

import (
	"strconv"

	"pkoinsight/pkg/contracts/domain"
)

// formatIntField writes missing fields as empty cells.
func formatIntField(f domain.Field[int]) string {
	if v, ok := f.Get(); ok {
		return strconv.Itoa(v)
	}
	return ""
}
