package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"CryptoFactors/internal/domain/models"
	applogger "CryptoFactors/pkg/logger"
	"CryptoFactors/pkg/util"
)

// CSVReader reads price ticks from CSV files with a
// "timestamp,symbol,price" header. Timestamps are epoch milliseconds.
type CSVReader struct {
	l *applogger.Logger
}

// NewCSVReader creates a CSV tick reader.
func NewCSVReader(l *applogger.Logger) *CSVReader {
	return &CSVReader{l: l}
}

// ReadFile reads one CSV file into ticks. Rows that fail to parse are
// skipped and counted, not fatal.
func (r *CSVReader) ReadFile(path string) ([]models.PriceTick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ticks, skipped, err := r.read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if skipped > 0 {
		r.l.Warn("skipped malformed csv rows",
			applogger.String("file", path),
			applogger.Int("skipped", skipped),
		)
	}
	r.l.Info("csv file read",
		applogger.String("file", path),
		applogger.Int("ticks", len(ticks)),
	)
	return ticks, nil
}

// ReadDir reads every *.csv file in a directory.
func (r *CSVReader) ReadDir(dir string) ([]models.PriceTick, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var all []models.PriceTick
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		ticks, err := r.ReadFile(dir + "/" + e.Name())
		if err != nil {
			return nil, err
		}
		all = append(all, ticks...)
	}
	return all, nil
}

func (r *CSVReader) read(src io.Reader) ([]models.PriceTick, int, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("header: %w", err)
	}
	if len(header) != 3 || !strings.EqualFold(header[0], "timestamp") ||
		!strings.EqualFold(header[1], "symbol") || !strings.EqualFold(header[2], "price") {
		return nil, 0, fmt.Errorf("unexpected header %v", header)
	}

	var (
		ticks   []models.PriceTick
		skipped int
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		tick, ok := parseRecord(rec)
		if !ok {
			skipped++
			continue
		}
		ticks = append(ticks, tick)
	}
	return ticks, skipped, nil
}

func parseRecord(rec []string) (models.PriceTick, bool) {
	ts, ok := util.ParseEpochMillis(strings.TrimSpace(rec[0]))
	if !ok {
		return models.PriceTick{}, false
	}
	symbol := strings.ToUpper(strings.TrimSpace(rec[1]))
	if symbol == "" {
		return models.PriceTick{}, false
	}
	price, err := decimal.NewFromString(strings.TrimSpace(rec[2]))
	if err != nil || price.IsNegative() {
		return models.PriceTick{}, false
	}
	return models.PriceTick{
		Timestamp: ts.UTC(),
		Symbol:    symbol,
		Price:     price,
	}, true
}
