package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/contactkeval/option-pricing/internal/logger"
)

// localCSVDataProvider reads bars from <dir>/<TICKER>.csv.
//
// The file needs a header row with at least Date and Close columns; Open,
// High, Low and Volume are optional. Column names are matched case
// insensitively, so spreadsheet and quote-site exports load unchanged.
// Dates may carry a time suffix ("2025-01-02 00:00:00-05:00"); only the
// first ten characters are parsed.
type localCSVDataProvider struct {
	dir       string
	secondary Provider
}

// NewLocalCSVDataProvider convenience constructor.
func NewLocalCSVDataProvider(dir string, secondary Provider) Provider {
	return &localCSVDataProvider{dir: dir, secondary: secondary}
}

func (p *localCSVDataProvider) Name() string { return "csv" }
func (p *localCSVDataProvider) Secondary() Provider { return p.secondary }

func (p *localCSVDataProvider) GetBars(ctx context.Context, ticker string, fromDate, toDate time.Time) ([]Bar, error) {
	path := filepath.Join(p.dir, strings.ToUpper(strings.TrimSpace(ticker))+".csv")
	logger.Debugf("event=fetch_bars provider=csv path=%s", path)

	f, err := os.Open(path)
	if err != nil {
		return fallback(ctx, p, ticker, fromDate, toDate, fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close()

	bars, err := readBarsCSV(f)
	if err != nil {
		return fallback(ctx, p, ticker, fromDate, toDate, fmt.Errorf("read %s: %w", path, err))
	}

	out := bars[:0]
	for _, b := range bars {
		if inRange(b.Date, fromDate, toDate) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return fallback(ctx, p, ticker, fromDate, toDate, fmt.Errorf("%s: %w in range", path, ErrNoBars))
	}
	SortBars(out)
	return out, nil
}

func readBarsCSV(r io.Reader) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateCol, okDate := cols["date"]
	closeCol, okClose := cols["close"]
	if !okDate || !okClose {
		return nil, errors.New("header must contain date and close columns")
	}

	field := func(row []string, name string) float64 {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return 0
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return 0
		}
		return v
	}

	var bars []Bar
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if dateCol >= len(row) || closeCol >= len(row) {
			continue
		}

		raw := strings.TrimSpace(row[dateCol])
		if len(raw) > 10 {
			raw = raw[:10]
		}
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			logger.Tracef("event=csv_skip line=%d reason=date value=%q", line, row[dateCol])
			continue
		}
		closePx := field(row, "close")
		if closePx <= 0 {
			logger.Tracef("event=csv_skip line=%d reason=close", line)
			continue
		}

		bars = append(bars, Bar{
			Date:   date,
			Open:   field(row, "open"),
			High:   field(row, "high"),
			Low:    field(row, "low"),
			Close:  closePx,
			Volume: field(row, "volume"),
		})
	}
	return bars, nil
}
