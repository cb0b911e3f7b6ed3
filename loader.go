package cooccur

import (
	"bufio"
	"compress/bzip2"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
)

var (
	ErrEmptyInput          = errors.New("input has no header row")
	ErrMissingColumn       = errors.New("required column is missing")
	ErrMalformedRow        = errors.New("row has the wrong number of fields")
	ErrInvalidArticleCount = errors.New("article count is not an integer")
)

// ═══════════════════════════════════════════════════════════════════════════════
// CORPUS LOADER
// ═══════════════════════════════════════════════════════════════════════════════
// Input is a tab-separated hit table, one row per term:
//
//	chemical    name        n_articles  pubmed_ids
//	DB00945     Aspirin     3           101|102|205
//	DB01050     Ibuprofen   2           102|330
//
// The loader returns two things:
//  1. Metadata: every column except pubmed_ids, rows with fewer than
//     MinArticles articles removed
//  2. TermIndex: term column → set of pubmed_ids
//
// COMPRESSION:
// ------------
//
//	*.gz   → parallel gzip (pgzip)
//	*.bz2  → bzip2
//	other  → plain text
//
// FAILURES:
// ---------
// Every malformed row aborts the load with the line number attached. There is
// no partial result.
// ═══════════════════════════════════════════════════════════════════════════════

// LoaderConfig controls how a hit table is read
type LoaderConfig struct {
	MinArticles   int    // Rows below this article count are dropped (default: 1)
	CountColumn   string // Article count column (default: "n_articles")
	IDColumn      string // Pipe-separated identifier column (default: "pubmed_ids")
	IDSeparator   string // Identifier separator (default: "|")
	Normalize     bool   // Canonicalise term labels before indexing
	NormalizeWith NormalizerConfig
	Logger        *slog.Logger
}

// DefaultLoaderConfig returns the standard loader configuration
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		MinArticles:   1,
		CountColumn:   "n_articles",
		IDColumn:      "pubmed_ids",
		IDSeparator:   "|",
		NormalizeWith: DefaultNormalizerConfig(),
	}
}

// withDefaults fills every zero-valued string field from DefaultLoaderConfig
func (c LoaderConfig) withDefaults() LoaderConfig {
	defaults := DefaultLoaderConfig()
	if c.CountColumn == "" {
		c.CountColumn = defaults.CountColumn
	}
	if c.IDColumn == "" {
		c.IDColumn = defaults.IDColumn
	}
	if c.IDSeparator == "" {
		c.IDSeparator = defaults.IDSeparator
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Metadata is the loaded table without its identifier column
type Metadata struct {
	Header []string
	Rows   [][]string
}

// Column returns every value of the named column, in row order
func (m *Metadata) Column(name string) ([]string, bool) {
	col := slices.Index(m.Header, name)
	if col < 0 {
		return nil, false
	}
	values := make([]string, len(m.Rows))
	for i, row := range m.Rows {
		values[i] = row[col]
	}
	return values, true
}

// Len returns the number of rows
func (m *Metadata) Len() int {
	return len(m.Rows)
}

// LoadTermIndex reads the hit table at path, decompressing by suffix, and
// indexes termColumn against dict
//
// EXAMPLE:
// --------
//
//	dict := NewDictionary()
//	meta, chemicals, err := LoadTermIndex("chemical-hits.tsv.gz", "chemical", DefaultLoaderConfig(), dict)
func LoadTermIndex(path, termColumn string, config LoaderConfig, dict *Dictionary) (*Metadata, *TermIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var in io.Reader = bufio.NewReader(f)

	switch {
	case strings.HasSuffix(path, ".gz"):
		zpr, err := pgzip.NewReader(in)
		if err != nil {
			return nil, nil, fmt.Errorf("creating decompressor for %s: %w", path, err)
		}
		defer zpr.Close()
		in = zpr
	case strings.HasSuffix(path, ".bz2"):
		in = bzip2.NewReader(in)
	}

	meta, idx, err := ReadTermIndex(in, termColumn, config, dict)
	if err != nil {
		return nil, nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return meta, idx, nil
}

// ReadTermIndex reads an uncompressed hit table from r
func ReadTermIndex(r io.Reader, termColumn string, config LoaderConfig, dict *Dictionary) (*Metadata, *TermIndex, error) {
	if dict == nil {
		return nil, nil, ErrNilDictionary
	}
	config = config.withDefaults()

	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	// Field counts are checked below so the error carries our sentinel
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrEmptyInput
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	termCol := slices.Index(header, termColumn)
	countCol := slices.Index(header, config.CountColumn)
	idCol := slices.Index(header, config.IDColumn)
	for _, c := range []struct {
		name  string
		index int
	}{
		{termColumn, termCol},
		{config.CountColumn, countCol},
		{config.IDColumn, idCol},
	} {
		if c.index < 0 {
			return nil, nil, fmt.Errorf("%w: %q", ErrMissingColumn, c.name)
		}
	}

	meta := &Metadata{Header: dropColumn(header, idCol)}
	idx := NewTermIndex(dict)

	read := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading rows: %w", err)
		}
		line, _ := cr.FieldPos(0)
		read++

		if len(record) != len(header) {
			return nil, nil, fmt.Errorf("line %d: %w: got %d, want %d", line, ErrMalformedRow, len(record), len(header))
		}

		count, err := strconv.Atoi(strings.TrimSpace(record[countCol]))
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w: %q", line, ErrInvalidArticleCount, record[countCol])
		}
		if count < config.MinArticles {
			continue
		}

		term := record[termCol]
		ids := splitIDs(record[idCol], config.IDSeparator)
		if config.Normalize {
			idx.Add(NormalizeTerm(term, config.NormalizeWith), ids...)
		} else {
			idx.Set(term, ids...)
		}
		meta.Rows = append(meta.Rows, dropColumn(record, idCol))
	}

	config.Logger.Debug("loaded term index",
		slog.String("column", termColumn),
		slog.Int("rows_read", read),
		slog.Int("rows_kept", meta.Len()),
		slog.Int("terms", idx.Len()))

	return meta, idx, nil
}

// splitIDs splits an identifier cell, skipping empty tokens
func splitIDs(cell, sep string) []string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	parts := strings.Split(cell, sep)
	ids := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// dropColumn returns a copy of row without index col
func dropColumn(row []string, col int) []string {
	out := make([]string, 0, len(row)-1)
	out = append(out, row[:col]...)
	return append(out, row[col+1:]...)
}
