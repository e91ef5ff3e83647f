// Package ranker scores candidate projects against query terms with Okapi
// BM25.
package ranker

import (
	"math"
	"sort"
)

const (
	k1 = 1.2
	b  = 0.75
)

// Posting is one term occurrence count for one project.
type Posting struct {
	Name      string
	Frequency int
}

type Scored struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type Params struct {
	TotalDocs    int
	AvgDocLength float64
}

// Rank sums BM25 contributions of every term's postings and returns the
// projects by descending score, ties broken by name. A limit <= 0 returns
// everything.
func Rank(
	postingsPerTerm map[string][]Posting,
	params Params,
	docLength func(name string) int,
	limit int,
) []Scored {
	scores := make(map[string]float64)
	for _, postings := range postingsPerTerm {
		idf := computeIDF(params.TotalDocs, len(postings))
		for _, p := range postings {
			tfNorm := computeTFNorm(
				float64(p.Frequency),
				float64(docLength(p.Name)),
				params.AvgDocLength,
			)
			scores[p.Name] += idf * tfNorm
		}
	}
	result := make([]Scored, 0, len(scores))
	for name, score := range scores {
		result = append(result, Scored{
			Name:  name,
			Score: math.Round(score*10000) / 10000,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].Name < result[j].Name
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func computeIDF(totalDocs, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq, docLength, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
