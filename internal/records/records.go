// Package records reads batches of found-item descriptions from CSV, TSV or
// plain-text files and writes classification results back out as CSV.
package records

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"yashubustudio/lostfound/classifier"
)

// Record is one item to classify.
type Record struct {
	ID       string
	Name     string
	Features string
	// Text is what gets classified: name and features combined.
	Text string
}

// ParseOptions override column detection. Columns are header names or
// 1-based "#n" positions.
type ParseOptions struct {
	IDColumn       string
	NameColumn     string
	FeaturesColumn string
	TextColumn     string
	Candidates     ColumnCandidates
}

// ParseFile reads records from path. .csv and .tsv are parsed as delimited
// tables; anything else is one record per non-empty line.
func ParseFile(path string, opts ParseOptions) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseDelimited(f, ',', opts)
	case ".tsv":
		return ParseDelimited(f, '\t', opts)
	default:
		return ParseLines(f)
	}
}

// ParseLines treats each non-empty line as a record's text.
func ParseLines(r io.Reader) ([]Record, error) {
	var out []Record
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := cleanCell(scanner.Text())
		if line == "" {
			continue
		}
		out = append(out, Record{Text: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan text: %w", err)
	}
	return out, nil
}

// ParseDelimited reads a table with the given separator. Rows with neither a
// name, features nor text are skipped.
func ParseDelimited(r io.Reader, comma rune, opts ParseOptions) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("empty file")
	}
	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = cleanCell(cell)
	}
	cols, skipHeader, err := resolveColumns(header, opts)
	if err != nil {
		return nil, err
	}
	if skipHeader {
		rows = rows[1:]
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := Record{
			ID:       cols.id.value(row),
			Name:     cols.name.value(row),
			Features: cols.features.value(row),
		}
		rec.Text = combineParts(rec.Name, rec.Features, cols.text.value(row))
		if rec.Text == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Result pairs a record with its classification.
type Result struct {
	Record Record
	Result classifier.ClassificationResult
}

// ResultHeader is the header row written by WriteCSV.
var ResultHeader = []string{"管理番号", "品名", "特徴", "大分類", "中分類", "信頼度", "判定根拠", "一致キーワード"}

// WriteCSV writes results with ResultHeader.
func WriteCSV(w io.Writer, results []Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ResultHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range results {
		name := r.Record.Name
		if name == "" {
			name = r.Record.Text
		}
		keywords := make([]string, len(r.Result.MatchedKeywords))
		for j, kw := range r.Result.MatchedKeywords {
			keywords[j] = kw.Keyword
		}
		row := []string{
			r.Record.ID,
			name,
			r.Record.Features,
			r.Result.LargeCategoryName,
			r.Result.MediumCategoryName,
			fmt.Sprintf("%.2f", r.Result.Confidence),
			string(r.Result.Source),
			strings.Join(keywords, ";"),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush results: %w", err)
	}
	return nil
}

// WriteCSVFile creates path and writes results to it.
func WriteCSVFile(path string, results []Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create result file: %w", err)
	}
	if err := WriteCSV(f, results); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ResolveOutputPath returns path made absolute, or a timestamped file under
// dir when path is empty. The parent directory is created.
func ResolveOutputPath(path, dir string, now time.Time) (string, error) {
	if path == "" {
		if dir == "" {
			dir = "csv"
		}
		path = filepath.Join(dir, fmt.Sprintf("result_%s.csv", now.Format("20060102150405")))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return abs, nil
}

func cleanCell(v string) string {
	return strings.TrimSpace(strings.TrimPrefix(v, "\ufeff"))
}

func combineParts(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p == "" {
			continue
		}
		dup := false
		for _, k := range kept {
			if k == p {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
