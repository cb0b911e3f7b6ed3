package cooccur

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
)

// ScoreRecord is one row of a score table
type ScoreRecord struct {
	Term0        string
	Term1        string
	Cooccurrence uint64
	Expected     float64
	Enrichment   float64
	OddsRatio    float64
	PFisher      float64
	NSource      uint64 // documents for Term0 inside the corpus
	NTarget      uint64 // documents for Term1 inside the corpus
}

func newScoreRecord(term0, term1 string, m Measures) ScoreRecord {
	return ScoreRecord{
		Term0:        term0,
		Term1:        term1,
		Cooccurrence: m.Cooccurrence,
		Expected:     m.Expected,
		Enrichment:   m.Enrichment,
		OddsRatio:    m.OddsRatio,
		PFisher:      m.PFisher,
		NSource:      m.NA,
		NTarget:      m.NB,
	}
}

// ScoreTable holds every scored pair in product order
type ScoreTable struct {
	Term0Name string
	Term1Name string
	Records   []ScoreRecord
}

// Columns returns the header row. The first two columns are named after the
// term classes.
func (t *ScoreTable) Columns() []string {
	return []string{
		t.Term0Name,
		t.Term1Name,
		"cooccurrence",
		"expected",
		"enrichment",
		"odds_ratio",
		"p_fisher",
		"n_source",
		"n_target",
	}
}

// Len returns the number of records
func (t *ScoreTable) Len() int {
	return len(t.Records)
}

// Lookup returns the record for (term0, term1)
func (t *ScoreTable) Lookup(term0, term1 string) (ScoreRecord, bool) {
	for _, r := range t.Records {
		if r.Term0 == term0 && r.Term1 == term1 {
			return r, true
		}
	}
	return ScoreRecord{}, false
}

// WriteTSV writes the header and every record as tab-separated values
func (t *ScoreTable) WriteTSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(t.Columns()); err != nil {
		return err
	}
	for _, r := range t.Records {
		row := []string{
			r.Term0,
			r.Term1,
			strconv.FormatUint(r.Cooccurrence, 10),
			formatFloat(r.Expected),
			formatFloat(r.Enrichment),
			formatFloat(r.OddsRatio),
			formatFloat(r.PFisher),
			strconv.FormatUint(r.NSource, 10),
			strconv.FormatUint(r.NTarget, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the table to path as TSV, gzip-compressed when path ends
// in ".gz"
func (t *ScoreTable) WriteFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	wrtr := bufio.NewWriter(f)

	if strings.HasSuffix(path, ".gz") {
		zpr, err := pgzip.NewWriterLevel(wrtr, pgzip.BestSpeed)
		if err != nil {
			return fmt.Errorf("creating compressor for %s: %w", path, err)
		}
		if err := t.WriteTSV(zpr); err != nil {
			zpr.Close()
			return err
		}
		if err := zpr.Close(); err != nil {
			return err
		}
	} else if err := t.WriteTSV(wrtr); err != nil {
		return err
	}

	return wrtr.Flush()
}

// formatFloat renders the shortest round-tripping form, spelling the
// non-finite values "inf", "-inf" and "nan"
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
