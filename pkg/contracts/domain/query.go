package domain

import (
	"slices"
	"time"
)

// AllMissions is the category sentinel meaning "no mission filter".
const AllMissions = "All"

// Query selects missions active within [Start, End], optionally narrowed to
// a single mission acronym.
type Query struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Mission string    `json:"mission"`
}

// AllCategories reports whether the query applies no mission filter.
func (q Query) AllCategories() bool {
	return q.Mission == "" || q.Mission == AllMissions
}

// View is an ordered subset of a Dataset. It references rows by index and
// never copies or mutates the underlying dataset.
type View struct {
	dataset *Dataset
	indices []int
}

// NewView builds a view over ds. Indices must be ascending.
func NewView(ds *Dataset, indices []int) View {
	return View{dataset: ds, indices: slices.Clone(indices)}
}

// FullView returns a view selecting every row.
func FullView(ds *Dataset) View {
	idx := make([]int, ds.Len())
	for i := range idx {
		idx[i] = i
	}
	return View{dataset: ds, indices: idx}
}

// Len returns the number of selected rows.
func (v View) Len() int { return len(v.indices) }

// Dataset returns the dataset the view was taken from.
func (v View) Dataset() *Dataset { return v.dataset }

// Indices returns the selected row positions.
func (v View) Indices() []int { return slices.Clone(v.indices) }

// Missions returns copies of the selected missions in dataset order.
func (v View) Missions() []Mission {
	out := make([]Mission, len(v.indices))
	for i, idx := range v.indices {
		out[i] = v.dataset.At(idx)
	}
	return out
}
