package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lengths(m map[string]int) func(string) int {
	return func(name string) int { return m[name] }
}

func TestRankOrdersByScore(t *testing.T) {
	postings := map[string][]Posting{
		"json": {{Name: "alpha", Frequency: 3}, {Name: "beta", Frequency: 1}},
	}
	got := Rank(postings, Params{TotalDocs: 3, AvgDocLength: 5}, lengths(map[string]int{"alpha": 5, "beta": 5}), 0)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Name)
	assert.Equal(t, "beta", got[1].Name)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestRankTieBreaksByName(t *testing.T) {
	postings := map[string][]Posting{
		"tool": {{Name: "zeta", Frequency: 1}, {Name: "alpha", Frequency: 1}},
	}
	got := Rank(postings, Params{TotalDocs: 2, AvgDocLength: 4}, lengths(map[string]int{"zeta": 4, "alpha": 4}), 0)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Name)
	assert.Equal(t, "zeta", got[1].Name)
}

func TestRankSumsTerms(t *testing.T) {
	postings := map[string][]Posting{
		"fast": {{Name: "beta", Frequency: 1}},
		"json": {{Name: "alpha", Frequency: 1}, {Name: "beta", Frequency: 1}},
	}
	got := Rank(postings, Params{TotalDocs: 2, AvgDocLength: 3}, lengths(map[string]int{"alpha": 3, "beta": 3}), 0)
	require.Len(t, got, 2)
	assert.Equal(t, "beta", got[0].Name)
}

func TestRankLimit(t *testing.T) {
	postings := map[string][]Posting{
		"x": {{Name: "a", Frequency: 1}, {Name: "b", Frequency: 2}, {Name: "c", Frequency: 3}},
	}
	got := Rank(postings, Params{TotalDocs: 10, AvgDocLength: 3}, lengths(map[string]int{"a": 3, "b": 3, "c": 3}), 2)
	assert.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Name)
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil, Params{}, lengths(nil), 0))
}
