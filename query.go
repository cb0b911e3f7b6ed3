package cooccur

import (
	"github.com/RoaringBitmap/roaring"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CORPUS SET ALGEBRA
// ═══════════════════════════════════════════════════════════════════════════════
// The scorer needs three set operations over a whole term index:
//
//	Union()       → every document that mentions ANY term of the class
//	Restrict(c)   → each term's set intersected with corpus c, empties dropped
//	AllOf/AnyOf   → intersection / union over a chosen subset of terms
//
// All of them return fresh bitmaps. Nothing here mutates the receiver, so a
// caller's index stays untouched however often it is scored.
// ═══════════════════════════════════════════════════════════════════════════════

// Union returns the set of documents mentioned by at least one term
//
// PERFORMANCE:
// ------------
// roaring.FastOr merges all bitmaps in one pass instead of folding pairwise.
func (idx *TermIndex) Union() *roaring.Bitmap {
	if len(idx.terms) == 0 {
		return roaring.NewBitmap()
	}
	bitmaps := make([]*roaring.Bitmap, 0, len(idx.terms))
	for _, term := range idx.terms {
		bitmaps = append(bitmaps, idx.sets[term])
	}
	return roaring.FastOr(bitmaps...)
}

// Restrict returns a new index whose sets are intersected with corpus.
// Terms left with an empty set are dropped; the survivors keep their order.
//
// EXAMPLE:
// --------
//
//	idx:    "a" → {1,2}, "b" → {3}, "c" → {2,4}
//	corpus: {2,4}
//	result: "a" → {2},   "c" → {2,4}
func (idx *TermIndex) Restrict(corpus *roaring.Bitmap) *TermIndex {
	restricted := &TermIndex{
		dict: idx.dict,
		sets: make(map[string]*roaring.Bitmap, len(idx.sets)),
	}
	for _, term := range idx.terms {
		bitmap := roaring.And(idx.sets[term], corpus)
		if bitmap.IsEmpty() {
			continue
		}
		restricted.terms = append(restricted.terms, term)
		restricted.sets[term] = bitmap
	}
	return restricted
}

// SharedCorpus returns the documents mentioned by both indices
func SharedCorpus(idx0, idx1 *TermIndex) *roaring.Bitmap {
	return roaring.And(idx0.Union(), idx1.Union())
}

// AllOf finds documents tagged with ALL of the given terms (AND).
// An unknown term yields an empty result.
//
// EXAMPLE:
// --------
//
//	results := AllOf(index, "aspirin", "ibuprofen")
func AllOf(idx *TermIndex, terms ...string) *roaring.Bitmap {
	if len(terms) == 0 {
		return roaring.NewBitmap()
	}
	bitmaps := make([]*roaring.Bitmap, 0, len(terms))
	for _, term := range terms {
		bitmap, ok := idx.sets[term]
		if !ok {
			return roaring.NewBitmap()
		}
		bitmaps = append(bitmaps, bitmap)
	}
	return roaring.FastAnd(bitmaps...)
}

// AnyOf finds documents tagged with ANY of the given terms (OR).
// Unknown terms are ignored.
func AnyOf(idx *TermIndex, terms ...string) *roaring.Bitmap {
	bitmaps := make([]*roaring.Bitmap, 0, len(terms))
	for _, term := range terms {
		if bitmap, ok := idx.sets[term]; ok {
			bitmaps = append(bitmaps, bitmap)
		}
	}
	if len(bitmaps) == 0 {
		return roaring.NewBitmap()
	}
	return roaring.FastOr(bitmaps...)
}

// TermExcluding finds documents tagged with include but not with exclude
func TermExcluding(idx *TermIndex, include, exclude string) *roaring.Bitmap {
	bitmap, ok := idx.sets[include]
	if !ok {
		return roaring.NewBitmap()
	}
	if other, ok := idx.sets[exclude]; ok {
		return roaring.AndNot(bitmap, other)
	}
	return bitmap.Clone()
}
