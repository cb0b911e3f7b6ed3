// Package cooccur scores cooccurrence between two classes of terms that
// annotate the same document corpus.
//
// ═══════════════════════════════════════════════════════════════════════════════
// WHAT IS A TERM INDEX?
// ═══════════════════════════════════════════════════════════════════════════════
// A term index maps each term of one class to the set of documents that
// mention it. It is an inverted index with the positions stripped away.
//
// Example: Given these PubMed hit lists for chemicals:
//
//	"aspirin"   → {101, 102, 205}
//	"ibuprofen" → {102, 330}
//
// and these for diseases:
//
//	"asthma"    → {102, 205, 999}
//
// the chemical class covers {101, 102, 205, 330} and the disease class covers
// {102, 205, 999}. The corpus is the documents that carry at least one term of
// EACH class: {102, 205}. Cooccurrence is then counted inside that corpus only.
//
// Document identifiers are opaque strings. They are interned through a
// Dictionary into dense uint32 keys so every document set can be stored as a
// roaring bitmap, which makes union, intersection and overlap counting cheap.
// ═══════════════════════════════════════════════════════════════════════════════

package cooccur

import (
	"errors"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ERROR DEFINITIONS
// ═══════════════════════════════════════════════════════════════════════════════
var (
	ErrEmptyIndex         = errors.New("term index has no terms")
	ErrDictionaryMismatch = errors.New("term indices use different document dictionaries")
	ErrNilDictionary      = errors.New("document dictionary is nil")
)

// ═══════════════════════════════════════════════════════════════════════════════
// DOCUMENT DICTIONARY
// ═══════════════════════════════════════════════════════════════════════════════
// Dictionary assigns each distinct document identifier a dense uint32 key.
//
// Keys are handed out in first-seen order starting at 0, so the same
// identifier always maps to the same key for the lifetime of the dictionary.
// Two term indices can only be compared when they were built against the same
// Dictionary; otherwise key 7 in one bitmap is not key 7 in the other.
//
// Dictionary is safe for concurrent use, so two loaders may intern into the
// same dictionary at once.
type Dictionary struct {
	mu   sync.RWMutex
	keys map[string]uint32
	ids  []string
}

// NewDictionary creates an empty document dictionary
func NewDictionary() *Dictionary {
	return &Dictionary{
		keys: make(map[string]uint32),
	}
}

// Intern returns the key for id, assigning a new one on first sight
func (d *Dictionary) Intern(id string) uint32 {
	d.mu.RLock()
	key, ok := d.keys[id]
	d.mu.RUnlock()
	if ok {
		return key
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Another goroutine may have won the race between the two locks
	if key, ok := d.keys[id]; ok {
		return key
	}
	key = uint32(len(d.ids))
	d.keys[id] = key
	d.ids = append(d.ids, id)
	return key
}

// Lookup returns the key for id without assigning one
func (d *Dictionary) Lookup(id string) (uint32, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	key, ok := d.keys[id]
	return key, ok
}

// ID returns the identifier behind key
func (d *Dictionary) ID(key uint32) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(key) >= len(d.ids) {
		return "", false
	}
	return d.ids[key], true
}

// Len returns the number of interned identifiers
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.ids)
}

// Bitmap interns every id and returns the resulting document set.
// Duplicate ids collapse.
func (d *Dictionary) Bitmap(ids ...string) *roaring.Bitmap {
	bitmap := roaring.NewBitmap()
	for _, id := range ids {
		bitmap.Add(d.Intern(id))
	}
	return bitmap
}

// IDs translates a document set back into identifiers, in key order
func (d *Dictionary) IDs(bitmap *roaring.Bitmap) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, bitmap.GetCardinality())
	iter := bitmap.Iterator()
	for iter.HasNext() {
		key := iter.Next()
		if int(key) < len(d.ids) {
			out = append(out, d.ids[key])
		}
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════════
// CORE DATA STRUCTURE: TermIndex
// ═══════════════════════════════════════════════════════════════════════════════
// Architecture:
//
//	TermIndex
//	├── dict:  *Dictionary                 (shared with the other class)
//	├── terms: []string                    (insertion order)
//	└── sets:  map[string]*roaring.Bitmap  (term → document keys)
//
// Why keep a separate order slice?
//   - Go maps have no iteration order, but the scorer promises that output
//     rows follow the order in which terms were added.
//   - The slice records the first insertion of each term; replacing a term's
//     set keeps its original position.
//
// TermIndex is not safe for concurrent mutation. Build it, then share it
// read-only.
// ═══════════════════════════════════════════════════════════════════════════════
type TermIndex struct {
	dict  *Dictionary
	terms []string
	sets  map[string]*roaring.Bitmap
}

// NewTermIndex creates an empty term index bound to dict
func NewTermIndex(dict *Dictionary) *TermIndex {
	return &TermIndex{
		dict: dict,
		sets: make(map[string]*roaring.Bitmap),
	}
}

// Dictionary returns the document dictionary the index is keyed by
func (idx *TermIndex) Dictionary() *Dictionary {
	return idx.dict
}

// Set stores the document identifiers for term, replacing any previous set.
//
// EXAMPLE:
// --------
//
//	idx.Set("aspirin", "101", "102", "102")
//	idx.Docs("aspirin").GetCardinality() // 2
func (idx *TermIndex) Set(term string, docIDs ...string) {
	idx.SetBitmap(term, idx.dict.Bitmap(docIDs...))
}

// SetBitmap stores a document set for term, replacing any previous set.
// The index takes ownership of bitmap.
func (idx *TermIndex) SetBitmap(term string, bitmap *roaring.Bitmap) {
	if _, exists := idx.sets[term]; !exists {
		idx.terms = append(idx.terms, term)
	}
	idx.sets[term] = bitmap
}

// Add unions document identifiers into the set for term
func (idx *TermIndex) Add(term string, docIDs ...string) {
	idx.merge(term, idx.dict.Bitmap(docIDs...))
}

// merge unions bitmap into the set for term, creating the term if needed
func (idx *TermIndex) merge(term string, bitmap *roaring.Bitmap) {
	existing, exists := idx.sets[term]
	if !exists {
		idx.SetBitmap(term, bitmap)
		return
	}
	existing.Or(bitmap)
}

// Docs returns the document set for term, or nil if the term is absent.
// The returned bitmap is owned by the index and must not be modified.
func (idx *TermIndex) Docs(term string) *roaring.Bitmap {
	return idx.sets[term]
}

// DocIDs returns the document identifiers for term in key order
func (idx *TermIndex) DocIDs(term string) []string {
	bitmap, ok := idx.sets[term]
	if !ok {
		return nil
	}
	return idx.dict.IDs(bitmap)
}

// Terms returns the terms in insertion order
func (idx *TermIndex) Terms() []string {
	out := make([]string, len(idx.terms))
	copy(out, idx.terms)
	return out
}

// Len returns the number of terms
func (idx *TermIndex) Len() int {
	return len(idx.terms)
}

// Clone returns a deep copy: new order slice, new map, cloned bitmaps
func (idx *TermIndex) Clone() *TermIndex {
	clone := &TermIndex{
		dict:  idx.dict,
		terms: make([]string, len(idx.terms)),
		sets:  make(map[string]*roaring.Bitmap, len(idx.sets)),
	}
	copy(clone.terms, idx.terms)
	for term, bitmap := range idx.sets {
		clone.sets[term] = bitmap.Clone()
	}
	return clone
}
