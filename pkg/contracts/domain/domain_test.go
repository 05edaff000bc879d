package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestField(t *testing.T) {
	ok := Present(42.5, "42,5")
	v, present := ok.Get()
	assert.True(t, present)
	assert.Equal(t, 42.5, v)
	assert.Equal(t, "42.5", ok.String())
	assert.Equal(t, "ok", ok.Status.String())

	missing := Missing[time.Time]("not a date", ReasonUnparseable)
	_, present = missing.Get()
	assert.False(t, present)
	assert.Equal(t, "not a date", missing.Raw)
	assert.Equal(t, "<missing:unparseable>", missing.String())
	assert.Equal(t, "missing", missing.Status.String())

	fallback := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, fallback, missing.OrElse(fallback))
}

func TestField_MarshalJSON(t *testing.T) {
	got, err := json.Marshal(struct {
		A Field[int]     `json:"a"`
		B Field[float64] `json:"b"`
	}{Present(3, "3"), Missing[float64]("", ReasonEmpty)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":3,"b":null}`, string(got))
}

func sampleDataset() *Dataset {
	return NewDataset("test.csv", time.Unix(0, 0).UTC(), []string{ColumnAcronym}, []Mission{
		{Index: 0, Acronym: "UNMIK", IsActive: "yes", Cells: []string{"UNMIK"}},
		{Index: 1, Acronym: "MINUSMA", IsActive: "No", EndDate: Present(time.Now(), ""), Cells: []string{"MINUSMA"}},
		{Index: 2, Acronym: "UNMIK", Cells: []string{"UNMIK"}},
	})
}

func TestDataset(t *testing.T) {
	ds := sampleDataset()
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, []string{"UNMIK", "MINUSMA"}, ds.Acronyms())

	m, ok := ds.Find("UNMIK")
	require.True(t, ok)
	assert.Equal(t, 0, m.Index)
	assert.True(t, m.Active(), "active flag compares case-insensitively")
	assert.True(t, m.Ongoing())

	_, ok = ds.Find("UNTSO")
	assert.False(t, ok)

	// callers get copies
	m.Cells[0] = "changed"
	ds.Columns()[0] = "changed"
	assert.Equal(t, "UNMIK", ds.At(0).Cells[0])
	assert.Equal(t, ColumnAcronym, ds.Columns()[0])

	var nilDataset *Dataset
	assert.Equal(t, 0, nilDataset.Len())
}

func TestView(t *testing.T) {
	ds := sampleDataset()

	full := FullView(ds)
	assert.Equal(t, 3, full.Len())
	assert.Equal(t, []int{0, 1, 2}, full.Indices())

	v := NewView(ds, []int{1, 2})
	got := v.Missions()
	require.Len(t, got, 2)
	assert.Equal(t, "MINUSMA", got[0].Acronym)
	assert.Same(t, ds, v.Dataset())
}

func TestQuery_AllCategories(t *testing.T) {
	assert.True(t, Query{}.AllCategories())
	assert.True(t, Query{Mission: AllMissions}.AllCategories())
	assert.False(t, Query{Mission: "UNMIK"}.AllCategories())
}
