package fundamentals

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/internal/macro"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

// column identifies a record field independently of the header language
type column int

const (
	colTicker column = iota
	colValuation
	colROE
	colGrowth
	colLeverage
	colSector
	colPrice
	colDividendYield
)

// headerAliases maps lower-cased header labels to fields.
// Portuguese labels come from the screener exports the CSV is usually built from.
var headerAliases = map[string]column{
	"ticker": colTicker, "papel": colTicker, "codigo": colTicker, "código": colTicker, "symbol": colTicker,
	"p/l": colValuation, "pl": colValuation, "p/e": colValuation, "pe": colValuation, "valuation": colValuation,
	"roe": colROE,
	"cagr": colGrowth, "crescimento": colGrowth, "growth": colGrowth, "cagr lucros 5 anos": colGrowth,
	"dívida": colLeverage, "divida": colLeverage, "dív. líq./ebitda": colLeverage, "leverage": colLeverage, "debt": colLeverage,
	"setor": colSector, "sector": colSector,
	"preço": colPrice, "preco": colPrice, "cotação": colPrice, "cotacao": colPrice, "price": colPrice,
	"dy": colDividendYield, "div. yield": colDividendYield, "dividend yield": colDividendYield, "dividend_yield": colDividendYield,
}

var requiredColumns = []column{colTicker, colValuation, colROE, colGrowth}

var columnNames = map[column]string{
	colTicker:        "ticker",
	colValuation:     "valuation",
	colROE:           "roe",
	colGrowth:        "growth",
	colLeverage:      "leverage",
	colSector:        "sector",
	colPrice:         "price",
	colDividendYield: "dividend_yield",
}

// Report summarises one ingestion pass
type Report struct {
	Rows    int                         `json:"rows"`
	Loaded  int                         `json:"loaded"`
	Skipped []contracts.ValidationError `json:"skipped"`
}

// CSVSource reads fundamentals from a CSV export
// ⭐ SSOT: file ingestion of fundamentals lives here
type CSVSource struct {
	path   string
	logger *logger.Logger
}

// NewCSVSource creates a source for the file at path
func NewCSVSource(path string, log *logger.Logger) *CSVSource {
	return &CSVSource{
		path:   path,
		logger: log.WithComponent("fundamentals"),
	}
}

// Load implements contracts.FundamentalsSource
func (s *CSVSource) Load(ctx context.Context) ([]contracts.FundamentalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open fundamentals: %w", err)
	}
	defer f.Close()

	records, report, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}

	for _, skipped := range report.Skipped {
		s.logger.WithFields(map[string]interface{}{
			"row":    skipped.Entity,
			"field":  skipped.Field,
			"reason": skipped.Reason,
		}).Warn("Skipping malformed fundamentals row")
	}

	s.logger.WithFields(map[string]interface{}{
		"path":    s.path,
		"rows":    report.Rows,
		"loaded":  report.Loaded,
		"skipped": len(report.Skipped),
	}).Info("Fundamentals loaded")

	return records, nil
}

// Parse reads a fundamentals CSV. The delimiter (',' or ';') is detected
// from the header; a UTF-8 BOM is ignored. Malformed rows land in the
// report instead of failing the load. Duplicate tickers keep the first row.
func Parse(r io.Reader) ([]contracts.FundamentalRecord, Report, error) {
	var report Report

	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, report, fmt.Errorf("read header: %w", err)
	}
	header = strings.TrimPrefix(header, "\ufeff")
	if strings.TrimSpace(header) == "" {
		return nil, report, fmt.Errorf("empty file")
	}

	reader := csv.NewReader(io.MultiReader(strings.NewReader(header), br))
	reader.Comma = detectDelimiter(header)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	cols, err := reader.Read()
	if err != nil {
		return nil, report, fmt.Errorf("read header: %w", err)
	}
	index, err := mapHeader(cols)
	if err != nil {
		return nil, report, err
	}

	seen := make(map[string]bool)
	var records []contracts.FundamentalRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, report, fmt.Errorf("read rows: %w", err)
			}
			report.Rows++
			report.Skipped = append(report.Skipped, contracts.ValidationError{
				Entity: fmt.Sprintf("line %d", pe.Line), Reason: pe.Err.Error(),
			})
			continue
		}
		line, _ := reader.FieldPos(0)
		if isBlank(row) {
			continue
		}
		report.Rows++

		rec, verr := parseRow(row, index)
		if verr != nil {
			verr.Entity = fmt.Sprintf("line %d", line)
			report.Skipped = append(report.Skipped, *verr)
			continue
		}
		if seen[rec.Ticker] {
			report.Skipped = append(report.Skipped, contracts.ValidationError{
				Entity: fmt.Sprintf("line %d", line), Field: "ticker", Reason: "duplicate " + rec.Ticker,
			})
			continue
		}
		seen[rec.Ticker] = true
		records = append(records, rec)
	}

	report.Loaded = len(records)
	return records, report, nil
}

func detectDelimiter(header string) rune {
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';'
	}
	return ','
}

func mapHeader(cols []string) (map[column]int, error) {
	index := make(map[column]int)
	for i, name := range cols {
		c, ok := headerAliases[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		if _, dup := index[c]; !dup {
			index[c] = i
		}
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := index[c]; !ok {
			missing = append(missing, columnNames[c])
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}

func parseRow(row []string, index map[column]int) (contracts.FundamentalRecord, *contracts.ValidationError) {
	cell := func(c column) string {
		i, ok := index[c]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := contracts.FundamentalRecord{Ticker: contracts.NormalizeTicker(cell(colTicker))}
	if rec.Ticker == "" {
		return rec, &contracts.ValidationError{Field: "ticker", Reason: "is empty"}
	}

	required := []struct {
		col column
		dst *float64
	}{
		{colValuation, &rec.Valuation},
		{colROE, &rec.ROE},
		{colGrowth, &rec.Growth},
	}
	for _, f := range required {
		v, ok, err := ParseNumber(cell(f.col))
		if err != nil {
			return rec, &contracts.ValidationError{Field: columnNames[f.col], Reason: err.Error()}
		}
		if !ok {
			return rec, &contracts.ValidationError{Field: columnNames[f.col], Reason: "is empty"}
		}
		*f.dst = v
	}

	if v, ok, err := ParseNumber(cell(colLeverage)); err != nil {
		return rec, &contracts.ValidationError{Field: "leverage", Reason: err.Error()}
	} else if ok {
		rec.Leverage = v
	}

	for _, f := range []struct {
		col column
		dst **float64
	}{
		{colPrice, &rec.Price},
		{colDividendYield, &rec.DividendYield},
	} {
		v, ok, err := ParseNumber(cell(f.col))
		if err != nil {
			return rec, &contracts.ValidationError{Field: columnNames[f.col], Reason: err.Error()}
		}
		if ok {
			*f.dst = &v
		}
	}

	rec.Sector = macro.CanonicalSector(cell(colSector))
	return rec, nil
}

// ParseNumber reads "12,5", "1.234,56", "18%", "R$ 37,19" or "37.19".
// ok is false for blank cells and placeholders like "-".
func ParseNumber(raw string) (v float64, ok bool, err error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || s == "-" || strings.EqualFold(s, "n/a") {
		return 0, false, nil
	}

	if strings.Contains(s, ",") {
		// Brazilian format: '.' groups thousands, ',' is the decimal mark
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("not a number: %q", raw)
	}
	return v, true, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
