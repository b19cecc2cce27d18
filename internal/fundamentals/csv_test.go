package fundamentals

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

func TestParsePortugueseExport(t *testing.T) {
	input := "\ufeffTicker;P/L;ROE;CAGR;Dívida;Setor;Preço;DY\n" +
		"wege3;10,5;25,3%;18,2;0,4;Industrial;37,19;1,8\n" +
		"ITUB4;8;21;13;;Financeiro;R$ 1.234,50;\n"

	records, report, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	wege := records[0]
	assert.Equal(t, "WEGE3", wege.Ticker)
	assert.Equal(t, 10.5, wege.Valuation)
	assert.Equal(t, 25.3, wege.ROE)
	assert.Equal(t, 18.2, wege.Growth)
	assert.Equal(t, 0.4, wege.Leverage)
	assert.Equal(t, "Industrials", wege.Sector)
	require.NotNil(t, wege.Price)
	assert.Equal(t, 37.19, *wege.Price)
	require.NotNil(t, wege.DividendYield)
	assert.Equal(t, 1.8, *wege.DividendYield)

	itub := records[1]
	assert.Equal(t, "Financials", itub.Sector)
	assert.Zero(t, itub.Leverage)
	require.NotNil(t, itub.Price)
	assert.Equal(t, 1234.5, *itub.Price)
	assert.Nil(t, itub.DividendYield)

	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 2, report.Loaded)
	assert.Empty(t, report.Skipped)
}

func TestParseEnglishHeaders(t *testing.T) {
	input := "symbol,pe,roe,growth,leverage,sector,price\n" +
		"AAA,12.5,20,15,1.1,Technology,10\n"

	records, _, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 12.5, records[0].Valuation)
	assert.Equal(t, "Technology", records[0].Sector)
}

func TestParseSkipsMalformedRows(t *testing.T) {
	input := "Ticker,P/L,ROE,CAGR\n" +
		"AAA,10,20,15\n" +
		"BBB,abc,20,15\n" +
		",10,20,15\n" +
		"CCC,10,,15\n" +
		"AAA,11,21,16\n" +
		"DDD,9,18,13\n"

	records, report, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	tickers := make([]string, 0, len(records))
	for _, r := range records {
		tickers = append(tickers, r.Ticker)
	}
	assert.Equal(t, []string{"AAA", "DDD"}, tickers)
	assert.Equal(t, 6, report.Rows)
	require.Len(t, report.Skipped, 4)

	assert.Equal(t, "line 3", report.Skipped[0].Entity)
	assert.Equal(t, "valuation", report.Skipped[0].Field)
	assert.Equal(t, "ticker", report.Skipped[1].Field)
	assert.Equal(t, "roe", report.Skipped[2].Field)
	assert.Contains(t, report.Skipped[3].Reason, "duplicate")
}

func TestParseRequiresColumns(t *testing.T) {
	_, _, err := Parse(strings.NewReader("Ticker,ROE\nAAA,20\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valuation")
	assert.Contains(t, err.Error(), "growth")

	_, _, err = Parse(strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
		err    bool
	}{
		{"37.19", 37.19, true, false},
		{"37,19", 37.19, true, false},
		{"1.234,56", 1234.56, true, false},
		{"18%", 18, true, false},
		{" R$ 10,00 ", 10, true, false},
		{"-3,5", -3.5, true, false},
		{"", 0, false, false},
		{"-", 0, false, false},
		{"n/a", 0, false, false},
		{"abc", 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, ok, err := ParseNumber(tt.raw)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, v, 1e-9)
		})
	}
}

func TestCSVSourceLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stocks.csv")
	require.NoError(t, os.WriteFile(path, []byte("Ticker,P/L,ROE,CAGR\nAAA,10,20,15\nBBB,x,1,1\n"), 0o644))

	src := NewCSVSource(path, logger.NewNop())
	records, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = NewCSVSource(filepath.Join(t.TempDir(), "missing.csv"), logger.NewNop()).Load(context.Background())
	assert.Error(t, err)
}
