package cooccur

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wizenheimer/cooccur/metrics"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SCORER TESTS
// ═══════════════════════════════════════════════════════════════════════════════
// All tests use setupTestIndices (query_test.go). After restriction to the
// shared corpus {102, 205, 330}:
//
//	aspirin   → {102, 205}    asthma → {102, 205}
//	ibuprofen → {102, 330}    gout   → {330}
//
// zinc and the documents 101, 777 and 999 fall outside the corpus.
// ═══════════════════════════════════════════════════════════════════════════════

func TestScore_RowOrderIsProductOrder(t *testing.T) {
	chemicals, diseases := setupTestIndices()

	table, err := Score(context.Background(), chemicals, diseases)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	want := [][2]string{
		{"aspirin", "asthma"},
		{"aspirin", "gout"},
		{"ibuprofen", "asthma"},
		{"ibuprofen", "gout"},
	}
	if table.Len() != len(want) {
		t.Fatalf("Len() = %d, want %d", table.Len(), len(want))
	}
	for i, pair := range want {
		r := table.Records[i]
		if r.Term0 != pair[0] || r.Term1 != pair[1] {
			t.Errorf("row %d = (%s, %s), want (%s, %s)", i, r.Term0, r.Term1, pair[0], pair[1])
		}
	}
}

func TestScore_Values(t *testing.T) {
	chemicals, diseases := setupTestIndices()

	table, err := Score(context.Background(), chemicals, diseases)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	// aspirin × asthma: [[2,0],[0,1]] over a corpus of 3
	r, ok := table.Lookup("aspirin", "asthma")
	if !ok {
		t.Fatal("aspirin × asthma missing")
	}
	if r.Cooccurrence != 2 || r.NSource != 2 || r.NTarget != 2 {
		t.Errorf("counts = %d, %d, %d; want 2, 2, 2", r.Cooccurrence, r.NSource, r.NTarget)
	}
	if !approxEqual(r.Expected, 4.0/3.0, 1e-12) {
		t.Errorf("Expected = %v, want 4/3", r.Expected)
	}
	if !approxEqual(r.Enrichment, 1.5, 1e-12) {
		t.Errorf("Enrichment = %v, want 1.5", r.Enrichment)
	}
	if !math.IsInf(r.OddsRatio, 1) {
		t.Errorf("OddsRatio = %v, want +Inf", r.OddsRatio)
	}
	if !approxEqual(r.PFisher, 1.0/3.0, 1e-9) {
		t.Errorf("PFisher = %v, want 1/3", r.PFisher)
	}

	// aspirin × gout never cooccur
	r, _ = table.Lookup("aspirin", "gout")
	if r.Cooccurrence != 0 || r.Enrichment != 0 || r.PFisher != 1 {
		t.Errorf("aspirin × gout = %+v, want zero cooccurrence and p = 1", r)
	}

	// n_source and n_target count documents inside the corpus only
	r, _ = table.Lookup("ibuprofen", "gout")
	if r.NSource != 2 || r.NTarget != 1 || r.Cooccurrence != 1 {
		t.Errorf("ibuprofen × gout counts = %d, %d, %d; want 1, 2, 1", r.Cooccurrence, r.NSource, r.NTarget)
	}
}

func TestScore_TablesSumToCorpus(t *testing.T) {
	chemicals, diseases := setupTestIndices()
	const total = 3

	table, err := Score(context.Background(), chemicals, diseases)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	for _, r := range table.Records {
		b := r.NSource - r.Cooccurrence
		c := r.NTarget - r.Cooccurrence
		if r.Cooccurrence+b+c > total {
			t.Errorf("%s × %s: a+b+c = %d exceeds corpus", r.Term0, r.Term1, r.Cooccurrence+b+c)
		}
		if r.Enrichment != float64(r.Cooccurrence)/r.Expected {
			t.Errorf("%s × %s: enrichment %v != a/expected", r.Term0, r.Term1, r.Enrichment)
		}
		if r.PFisher < 0 || r.PFisher > 1 {
			t.Errorf("%s × %s: p = %v outside [0,1]", r.Term0, r.Term1, r.PFisher)
		}
	}
}

func TestScore_DoesNotModifyInputs(t *testing.T) {
	chemicals, diseases := setupTestIndices()
	before0 := chemicals.Clone()
	before1 := diseases.Clone()

	if _, err := Score(context.Background(), chemicals, diseases); err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	for _, pair := range []struct{ got, want *TermIndex }{{chemicals, before0}, {diseases, before1}} {
		if !reflect.DeepEqual(pair.got.Terms(), pair.want.Terms()) {
			t.Errorf("terms changed: %v, want %v", pair.got.Terms(), pair.want.Terms())
		}
		for _, term := range pair.want.Terms() {
			if !pair.got.Docs(term).Equals(pair.want.Docs(term)) {
				t.Errorf("set for %q changed", term)
			}
		}
	}
}

func TestScore_Deterministic(t *testing.T) {
	idx0, idx1 := randomIndices(40, 30, 2000)

	serial, err := NewScorer(ScorerConfig{Workers: 1}).Score(context.Background(), idx0, idx1)
	if err != nil {
		t.Fatalf("Score(workers=1) error = %v", err)
	}
	parallel, err := NewScorer(ScorerConfig{Workers: 8}).Score(context.Background(), idx0, idx1)
	if err != nil {
		t.Fatalf("Score(workers=8) error = %v", err)
	}
	again, err := NewScorer(ScorerConfig{Workers: 8}).Score(context.Background(), idx0, idx1)
	if err != nil {
		t.Fatalf("Score(workers=8) error = %v", err)
	}

	for _, other := range []*ScoreTable{parallel, again} {
		if !sameRecords(serial.Records, other.Records) {
			t.Fatal("scores differ between runs")
		}
	}
}

func TestScore_ColumnNames(t *testing.T) {
	chemicals, diseases := setupTestIndices()

	table, err := NewScorer(ScorerConfig{Term0Name: "chemical", Term1Name: "disease"}).
		Score(context.Background(), chemicals, diseases)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	columns := table.Columns()
	if columns[0] != "chemical" || columns[1] != "disease" {
		t.Errorf("Columns()[:2] = %v, want [chemical disease]", columns[:2])
	}
}

func TestScore_Errors(t *testing.T) {
	dict := NewDictionary()
	full := NewTermIndex(dict)
	full.Set("a", "1", "2")
	empty := NewTermIndex(dict)

	disjoint := NewTermIndex(dict)
	disjoint.Set("b", "3")

	foreign := NewTermIndex(NewDictionary())
	foreign.Set("c", "1")

	tests := []struct {
		name       string
		idx0, idx1 *TermIndex
		want       error
	}{
		{"empty first index", empty, full, ErrEmptyIndex},
		{"empty second index", full, empty, ErrEmptyIndex},
		{"different dictionaries", full, foreign, ErrDictionaryMismatch},
		{"no shared documents", full, disjoint, ErrEmptyCorpus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Score(context.Background(), tt.idx0, tt.idx1)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if table != nil {
				t.Error("a failed run must not return a table")
			}
		})
	}
}

func TestScore_Cancelled(t *testing.T) {
	chemicals, diseases := setupTestIndices()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Score(ctx, chemicals, diseases)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestScore_VerboseReport(t *testing.T) {
	chemicals, diseases := setupTestIndices()

	var buf bytes.Buffer
	var report Report
	scorer := NewScorer(ScorerConfig{
		Term0Name: "chemical",
		Term1Name: "disease",
		Verbose:   true,
		Logger:    slog.New(slog.NewTextHandler(&buf, nil)),
		OnReport:  func(r Report) { report = r },
	})

	if _, err := scorer.Score(context.Background(), chemicals, diseases); err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	want := Report{
		Term0Name:      "chemical",
		Term1Name:      "disease",
		Term0Documents: 5,
		Term1Documents: 4,
		CorpusSize:     3,
		Term0Remaining: 2,
		Term1Remaining: 2,
		Pairs:          4,
	}
	if report != want {
		t.Errorf("report = %+v, want %+v", report, want)
	}

	out := buf.String()
	for _, msg := range []string{"corpus totals", "documents shared by both classes", "terms remaining after restriction", "cooccurrence scores calculated"} {
		if !strings.Contains(out, msg) {
			t.Errorf("verbose output missing %q", msg)
		}
	}
	if !strings.Contains(out, "component=scorer") {
		t.Error("log lines should carry the scorer component")
	}
}

func TestScore_Quiet(t *testing.T) {
	chemicals, diseases := setupTestIndices()

	var buf bytes.Buffer
	scorer := NewScorer(ScorerConfig{Logger: slog.New(slog.NewTextHandler(&buf, nil))})
	if _, err := scorer.Score(context.Background(), chemicals, diseases); err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	if buf.Len() != 0 {
		t.Errorf("non-verbose run logged:\n%s", buf.String())
	}
}

func TestScore_Metrics(t *testing.T) {
	chemicals, diseases := setupTestIndices()
	m := metrics.New(prometheus.NewRegistry())
	scorer := NewScorer(ScorerConfig{Term0Name: "chemical", Term1Name: "disease", Metrics: m})

	if _, err := scorer.Score(context.Background(), chemicals, diseases); err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if _, err := scorer.Score(context.Background(), chemicals, NewTermIndex(chemicals.Dictionary())); err == nil {
		t.Fatal("Score() with an empty index should fail")
	}

	if got := testutil.ToFloat64(m.PairsScoredTotal); got != 4 {
		t.Errorf("pairs_scored_total = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.ScoreRunsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("score_runs_total{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ScoreRunsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("score_runs_total{error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CorpusDocuments); got != 3 {
		t.Errorf("corpus_documents = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.TermsRetained.WithLabelValues("chemical")); got != 2 {
		t.Errorf("terms_retained{chemical} = %v, want 2", got)
	}
}

func TestNewScorer_Defaults(t *testing.T) {
	s := NewScorer(ScorerConfig{Workers: -3})

	if s.config.Term0Name != "term_0" || s.config.Term1Name != "term_1" {
		t.Errorf("names = %q, %q; want term_0, term_1", s.config.Term0Name, s.config.Term1Name)
	}
	if s.config.Workers < 1 {
		t.Errorf("Workers = %d, want ≥ 1", s.config.Workers)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// PERFORMANCE TESTS
// ═══════════════════════════════════════════════════════════════════════════════

func BenchmarkScore(b *testing.B) {
	idx0, idx1 := randomIndices(200, 100, 50000)
	scorer := NewScorer(DefaultScorerConfig())
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := scorer.Score(ctx, idx0, idx1); err != nil {
			b.Fatal(err)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPER FUNCTIONS
// ═══════════════════════════════════════════════════════════════════════════════

// randomIndices builds two indices over a shared dictionary with a fixed
// pseudo-random layout, so every call returns the same data
func randomIndices(terms0, terms1 int, docs uint32) (*TermIndex, *TermIndex) {
	dict := NewDictionary()
	state := uint32(2463534242)
	next := func() uint32 {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		return state
	}

	build := func(prefix string, n int) *TermIndex {
		idx := NewTermIndex(dict)
		for i := 0; i < n; i++ {
			bitmap := roaring.NewBitmap()
			size := 1 + next()%(docs/20)
			for j := uint32(0); j < size; j++ {
				bitmap.Add(next() % docs)
			}
			idx.SetBitmap(prefix+string(rune('A'+i%26))+string(rune('a'+i/26)), bitmap)
		}
		return idx
	}
	return build("x", terms0), build("y", terms1)
}

// sameRecords compares two record slices bit for bit, treating NaN as equal
// to NaN
func sameRecords(a, b []ScoreRecord) bool {
	if len(a) != len(b) {
		return false
	}
	bits := math.Float64bits
	for i := range a {
		x, y := a[i], b[i]
		if x.Term0 != y.Term0 || x.Term1 != y.Term1 ||
			x.Cooccurrence != y.Cooccurrence || x.NSource != y.NSource || x.NTarget != y.NTarget ||
			bits(x.Expected) != bits(y.Expected) || bits(x.Enrichment) != bits(y.Enrichment) ||
			bits(x.OddsRatio) != bits(y.OddsRatio) || bits(x.PFisher) != bits(y.PFisher) {
			return false
		}
	}
	return true
}
