package inventory

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

var searchSplit = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// SearchHit is an item ranked against a free-text query.
type SearchHit struct {
	Item  *Item
	Score float64
}

// termVector is a weighted bag of terms with its Euclidean norm.
type termVector struct {
	terms map[string]float64
	norm  float64
}

func searchTerms(text string) []string {
	raw := searchSplit.Split(kindCaser.String(NormalizePayload(text)), -1)
	terms := raw[:0]
	for _, term := range raw {
		if len(term) >= 2 {
			terms = append(terms, term)
		}
	}
	return terms
}

func newTermVector(terms []string, idf map[string]float64) termVector {
	v := termVector{terms: make(map[string]float64, len(terms))}
	for _, term := range terms {
		v.terms[term]++
	}
	var norm float64
	for term, count := range v.terms {
		if idf != nil {
			count *= idf[term]
			v.terms[term] = count
		}
		norm += count * count
	}
	v.norm = math.Sqrt(norm)
	return v
}

func cosine(a, b termVector) float64 {
	if a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for term, w := range a.terms {
		dot += w * b.terms[term]
	}
	return dot / (a.norm * b.norm)
}

func itemText(item *Item) string {
	return strings.Join(append([]string{item.Name, item.Serial, item.Location, item.Notes}, item.Codes...), " ")
}

// Search ranks every item matching filter by TF-IDF cosine similarity to
// query over name, serial, location, notes and codes. Items with no shared
// term are omitted. limit <= 0 returns every hit.
func (s *Store) Search(ctx context.Context, query string, filter ListFilter, limit int) ([]SearchHit, error) {
	queryTerms := searchTerms(query)
	if len(queryTerms) == 0 {
		return nil, nil
	}
	filter.Limit = 0
	items, err := s.ListItems(ctx, filter)
	if err != nil {
		return nil, err
	}

	docs := make([][]string, len(items))
	docFreq := make(map[string]int)
	for i, item := range items {
		docs[i] = searchTerms(itemText(item))
		seen := make(map[string]struct{}, len(docs[i]))
		for _, term := range docs[i] {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			docFreq[term]++
		}
	}
	n := float64(len(items))
	idf := make(map[string]float64, len(docFreq))
	for term, df := range docFreq {
		// Smoothed so a term present in every document keeps a small weight.
		idf[term] = math.Log((n+1)/float64(df)) + 1e-3
	}

	q := newTermVector(queryTerms, idf)
	var hits []SearchHit
	for i, item := range items {
		score := cosine(q, newTermVector(docs[i], idf))
		if score > 0 {
			hits = append(hits, SearchHit{Item: item, Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Item.ID < hits[j].Item.ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
