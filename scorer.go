package cooccur

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wizenheimer/cooccur/metrics"
)

// ═══════════════════════════════════════════════════════════════════════════════
// COOCCURRENCE SCORER
// ═══════════════════════════════════════════════════════════════════════════════
// ALGORITHM:
// ----------
//  1. all0 = ⋃ sets of class 0, all1 = ⋃ sets of class 1
//  2. corpus = all0 ∩ all1, total = |corpus|
//  3. Restrict both indices to the corpus, dropping terms left empty
//  4. For every (t0, t1) in restricted0 × restricted1, t0 outer and t1 inner,
//     build the contingency table and emit one ScoreRecord
//
// Step 3 is what keeps every table valid: after restriction each set is a
// subset of the corpus, so a+b+c+d == total by construction.
//
// No row is filtered out. Thresholds on p-value or enrichment belong to the
// caller.
//
// ORDERING:
// ---------
// Rows follow the insertion order of both indices. Workers split the outer
// loop but each writes into its own preassigned slots, so the table is the
// same row for row whatever the worker count.
// ═══════════════════════════════════════════════════════════════════════════════

// ScorerConfig controls a scoring run
type ScorerConfig struct {
	Term0Name string // Column header for class 0 terms (default: "term_0")
	Term1Name string // Column header for class 1 terms (default: "term_1")

	// Workers bounds the goroutines scoring rows. Values < 1 mean
	// runtime.GOMAXPROCS(0).
	Workers int

	// Verbose logs corpus totals before and after restriction at Info level.
	Verbose bool

	// OnReport, when set, receives the same totals as a Report.
	OnReport func(Report)

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// DefaultScorerConfig returns the standard scorer configuration
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Term0Name: "term_0",
		Term1Name: "term_1",
		Workers:   runtime.GOMAXPROCS(0),
	}
}

// Report summarises a scoring run. It never feeds back into the result.
type Report struct {
	Term0Name      string
	Term1Name      string
	Term0Documents uint64 // documents mentioning any class 0 term
	Term1Documents uint64 // documents mentioning any class 1 term
	CorpusSize     uint64 // documents mentioning both classes
	Term0Remaining int    // class 0 terms left after restriction
	Term1Remaining int    // class 1 terms left after restriction
	Pairs          int    // rows in the score table
}

// Scorer computes cooccurrence tables
type Scorer struct {
	config ScorerConfig
	logger *slog.Logger
}

// NewScorer creates a scorer, filling unset fields from DefaultScorerConfig
func NewScorer(config ScorerConfig) *Scorer {
	defaults := DefaultScorerConfig()
	if config.Term0Name == "" {
		config.Term0Name = defaults.Term0Name
	}
	if config.Term1Name == "" {
		config.Term1Name = defaults.Term1Name
	}
	if config.Workers < 1 {
		config.Workers = defaults.Workers
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		config: config,
		logger: logger.With("component", "scorer"),
	}
}

// Score scores idx0 against idx1 with DefaultScorerConfig
func Score(ctx context.Context, idx0, idx1 *TermIndex) (*ScoreTable, error) {
	return NewScorer(DefaultScorerConfig()).Score(ctx, idx0, idx1)
}

// Score computes one ScoreRecord for every pair of terms that survive corpus
// restriction. Neither index is modified.
//
// ERRORS:
// -------
//   - either index has no terms       → ErrEmptyIndex
//   - indices built on different dicts → ErrDictionaryMismatch
//   - the two classes share no document → ErrEmptyCorpus
//   - ctx cancelled                    → ctx.Err()
func (s *Scorer) Score(ctx context.Context, idx0, idx1 *TermIndex) (table *ScoreTable, err error) {
	start := time.Now()
	defer func() {
		pairs := 0
		if table != nil {
			pairs = table.Len()
		}
		s.config.Metrics.ObserveScore(pairs, time.Since(start), err)
	}()

	if idx0.Len() == 0 || idx1.Len() == 0 {
		return nil, ErrEmptyIndex
	}
	if idx0.dict != idx1.dict {
		return nil, ErrDictionaryMismatch
	}

	// STEP 1-2: the shared corpus
	all0 := idx0.Union()
	all1 := idx1.Union()
	corpus := all0.Clone()
	corpus.And(all1)
	total := corpus.GetCardinality()

	report := Report{
		Term0Name:      s.config.Term0Name,
		Term1Name:      s.config.Term1Name,
		Term0Documents: all0.GetCardinality(),
		Term1Documents: all1.GetCardinality(),
		CorpusSize:     total,
	}
	if s.config.Verbose {
		s.logger.Info("corpus totals",
			slog.String("class", s.config.Term0Name), slog.Uint64("documents", report.Term0Documents))
		s.logger.Info("corpus totals",
			slog.String("class", s.config.Term1Name), slog.Uint64("documents", report.Term1Documents))
		s.logger.Info("documents shared by both classes", slog.Uint64("documents", total))
	}

	if total == 0 {
		return nil, ErrEmptyCorpus
	}

	// STEP 3: transient working copies
	restricted0 := idx0.Restrict(corpus)
	restricted1 := idx1.Restrict(corpus)
	report.Term0Remaining = restricted0.Len()
	report.Term1Remaining = restricted1.Len()
	s.config.Metrics.ObserveCorpus(total, s.config.Term0Name, s.config.Term1Name, report.Term0Remaining, report.Term1Remaining)

	if s.config.Verbose {
		s.logger.Info("terms remaining after restriction",
			slog.String("class", s.config.Term0Name), slog.Int("terms", report.Term0Remaining))
		s.logger.Info("terms remaining after restriction",
			slog.String("class", s.config.Term1Name), slog.Int("terms", report.Term1Remaining))
	}

	// STEP 4: the cross product
	records, err := s.scorePairs(ctx, restricted0, restricted1, total)
	if err != nil {
		return nil, err
	}

	table = &ScoreTable{
		Term0Name: s.config.Term0Name,
		Term1Name: s.config.Term1Name,
		Records:   records,
	}
	report.Pairs = table.Len()

	if s.config.Verbose {
		s.logger.Info("cooccurrence scores calculated",
			slog.Int("pairs", report.Pairs),
			slog.String("term0", s.config.Term0Name),
			slog.String("term1", s.config.Term1Name))
	}
	if s.config.OnReport != nil {
		s.config.OnReport(report)
	}
	return table, nil
}

// scorePairs fills records[i*len(terms1)+j] for every (terms0[i], terms1[j])
//
// Each outer row is one errgroup task. The group limit bounds concurrency;
// the first failure cancels the remaining rows.
func (s *Scorer) scorePairs(ctx context.Context, idx0, idx1 *TermIndex, total uint64) ([]ScoreRecord, error) {
	terms0 := idx0.terms
	terms1 := idx1.terms
	width := len(terms1)
	records := make([]ScoreRecord, len(terms0)*width)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)

	for i, term0 := range terms0 {
		term0 := term0
		set0 := idx0.sets[term0]
		row := records[i*width : (i+1)*width]

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for j, term1 := range terms1 {
				table, err := NewContingencyTable(set0, idx1.sets[term1], total)
				if err != nil {
					return fmt.Errorf("scoring %q × %q: %w", term0, term1, err)
				}
				row[j] = newScoreRecord(term0, term1, measureTable(table))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}
