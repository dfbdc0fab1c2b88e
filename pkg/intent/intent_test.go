package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	d := Default()
	assert.Equal(t, "", d.Query)
	assert.True(t, d.Filters.IsZero())
	assert.Equal(t, SortRelevance, d.SortBy)
	assert.Equal(t, Desc, d.SortOrder)
	assert.Equal(t, 1, d.Page)
	assert.Equal(t, DefaultPageSize, d.PageSize)
	assert.True(t, Normalize(d).Equal(d))
}

func TestNormalizeList(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, nil},
		{"blanks only", []string{"", "  ", ","}, nil},
		{"trim and dedupe", []string{" Food ", "Food", "Housing"}, []string{"Food", "Housing"}},
		{"comma split", []string{"Food,Housing", "Legal"}, []string{"Food", "Housing", "Legal"}},
		{"keeps order", []string{"b", "a", "b"}, []string{"b", "a"}},
		// "e" followed by a combining acute accent composes to "é".
		{"nfc", []string{"Cafe\u0301", "Caf\u00e9"}, []string{"Caf\u00e9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeList(tt.in))
		})
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize(Intent{
		Query:     "  food bank ",
		Filters:   Filters{Services: []string{"Meals", "", "Meals"}, Location: " Springfield "},
		SortBy:    "popularity",
		SortOrder: "sideways",
		Page:      -4,
		PageSize:  0,
	})

	assert.Equal(t, "food bank", got.Query)
	assert.Equal(t, []string{"Meals"}, got.Filters.Services)
	assert.Equal(t, "Springfield", got.Filters.Location)
	assert.Equal(t, SortRelevance, got.SortBy)
	assert.Equal(t, Desc, got.SortOrder)
	assert.Equal(t, 1, got.Page)
	assert.Equal(t, DefaultPageSize, got.PageSize)
}

func TestParseSort(t *testing.T) {
	by, ok := ParseSortBy("created_at")
	assert.True(t, ok)
	assert.Equal(t, SortCreatedAt, by)

	by, ok = ParseSortBy("NAME")
	assert.False(t, ok)
	assert.Equal(t, SortRelevance, by)

	order, ok := ParseSortOrder("asc")
	assert.True(t, ok)
	assert.Equal(t, Asc, order)

	order, ok = ParseSortOrder("")
	assert.False(t, ok)
	assert.Equal(t, Desc, order)
}

func TestEqualTreatsNilAndEmptyAlike(t *testing.T) {
	a := Default()
	b := Default()
	b.Filters.Category = []string{}
	assert.True(t, a.Equal(b))

	b.Filters.Category = []string{"Food"}
	assert.False(t, a.Equal(b))
}

func TestCloneIsDeep(t *testing.T) {
	a := Default()
	a.Filters.Category = []string{"Food"}

	b := a.Clone()
	b.Filters.Category[0] = "Housing"

	assert.Equal(t, "Food", a.Filters.Category[0])
}
