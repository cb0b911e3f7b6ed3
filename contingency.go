package cooccur

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

var (
	ErrEmptyCorpus      = errors.New("corpus is empty: expected cooccurrence divides by zero")
	ErrEmptySet         = errors.New("document set is empty: enrichment divides by zero")
	ErrSetExceedsCorpus = errors.New("document sets are larger than the corpus")
)

// ═══════════════════════════════════════════════════════════════════════════════
// CONTINGENCY TABLE
// ═══════════════════════════════════════════════════════════════════════════════
// Given two document sets A and B drawn from a corpus of `total` documents:
//
//	a = |A ∩ B|            documents with both terms
//	b = |A| - a            documents with only A
//	c = |B| - a            documents with only B
//	d = total - (a+b+c)    documents with neither
//
// EXAMPLE:
// --------
// A = {1,2,3}, B = {2,3,4}, total = 10
//
//	a = 2, b = 1, c = 1, d = 6
//
// INVARIANT: a+b+c+d == total and every cell ≥ 0. That only holds when
// A ∪ B fits inside the corpus; a larger union is rejected with
// ErrSetExceedsCorpus.
// ═══════════════════════════════════════════════════════════════════════════════

// ContingencyTable is the 2×2 table [[A, B], [C, D]]
type ContingencyTable struct {
	A uint64 // in both sets
	B uint64 // in the first set only
	C uint64 // in the second set only
	D uint64 // in neither set
}

// NewContingencyTable builds the table for two document sets in a corpus of
// total documents
func NewContingencyTable(setA, setB *roaring.Bitmap, total uint64) (ContingencyTable, error) {
	nA := setA.GetCardinality()
	nB := setB.GetCardinality()
	a := setA.AndCardinality(setB)

	union := nA + nB - a
	if union > total {
		return ContingencyTable{}, fmt.Errorf("%w: |A ∪ B| = %d, total = %d", ErrSetExceedsCorpus, union, total)
	}

	return ContingencyTable{
		A: a,
		B: nA - a,
		C: nB - a,
		D: total - union,
	}, nil
}

// Total returns a+b+c+d
func (t ContingencyTable) Total() uint64 {
	return t.A + t.B + t.C + t.D
}

// degenerate reports whether any row or column margin is zero
func (t ContingencyTable) degenerate() bool {
	return t.A+t.B == 0 || t.C+t.D == 0 || t.A+t.C == 0 || t.B+t.D == 0
}

// ═══════════════════════════════════════════════════════════════════════════════
// DERIVED MEASURES
// ═══════════════════════════════════════════════════════════════════════════════
// expected   = |A| · |B| / total    overlap under independence
// enrichment = a / expected         observed over expected
// odds ratio, p-value               one-sided Fisher exact test (fisher.go)
// ═══════════════════════════════════════════════════════════════════════════════

// Measures holds the cooccurrence statistics for one pair of document sets
type Measures struct {
	Cooccurrence uint64  // a
	Expected     float64 // |A|·|B|/total
	Enrichment   float64 // a / Expected
	OddsRatio    float64 // sample odds ratio a·d/(b·c)
	PFisher      float64 // P(X ≥ a) under the hypergeometric null
	NA           uint64  // |A|
	NB           uint64  // |B|
}

// Measure computes every statistic for setA and setB in a corpus of total
// documents. It has no side effects and does not retain the bitmaps.
//
// ERRORS:
// -------
//   - total == 0          → ErrEmptyCorpus
//   - either set is empty → ErrEmptySet
//   - |A ∪ B| > total     → ErrSetExceedsCorpus
func Measure(setA, setB *roaring.Bitmap, total uint64) (Measures, error) {
	if total == 0 {
		return Measures{}, ErrEmptyCorpus
	}
	if setA.IsEmpty() || setB.IsEmpty() {
		return Measures{}, ErrEmptySet
	}

	table, err := NewContingencyTable(setA, setB, total)
	if err != nil {
		return Measures{}, err
	}
	return measureTable(table), nil
}

// measureTable derives the statistics from a validated, non-empty table
func measureTable(t ContingencyTable) Measures {
	nA := t.A + t.B
	nB := t.A + t.C

	expected := float64(nA) * float64(nB) / float64(t.Total())
	oddsRatio, pValue := FisherExactGreater(t)

	return Measures{
		Cooccurrence: t.A,
		Expected:     expected,
		Enrichment:   float64(t.A) / expected,
		OddsRatio:    oddsRatio,
		PFisher:      pValue,
		NA:           nA,
		NB:           nB,
	}
}
