package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"alphaspike/internal/domain/models"
	applogger "alphaspike/pkg/logger"
)

// FileCatalog loads the instrument universe from per-exchange CSV
// listings (code,name,list_date). Instruments are refreshed on every
// Load and treated as immutable for the rest of a run.
type FileCatalog struct {
	sseFile      string
	szseFile     string
	excludeST    bool
	minListYears int
	l            *applogger.Logger
}

type Option func(*FileCatalog)

// WithFilters configures ST exclusion and the minimum listing age.
func WithFilters(excludeST bool, minListYears int) Option {
	return func(c *FileCatalog) {
		c.excludeST = excludeST
		c.minListYears = minListYears
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *FileCatalog) { c.l = l }
}

// New creates a catalog over the SSE and SZSE listing files.
func New(sseFile, szseFile string, opts ...Option) *FileCatalog {
	c := &FileCatalog{
		sseFile:      sseFile,
		szseFile:     szseFile,
		excludeST:    true,
		minListYears: 2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads both exchange files and applies the configured filters.
func (c *FileCatalog) Load(ctx context.Context) ([]models.Instrument, error) {
	sse, err := c.loadFile(ctx, c.sseFile, "SSE", ".SH")
	if err != nil {
		return nil, fmt.Errorf("load sse: %w", err)
	}
	szse, err := c.loadFile(ctx, c.szseFile, "SZSE", ".SZ")
	if err != nil {
		return nil, fmt.Errorf("load szse: %w", err)
	}

	out := append(sse, szse...)
	if c.l != nil {
		c.l.Info("catalog loaded",
			applogger.Int("instruments", len(out)),
			applogger.Bool("exclude_st", c.excludeST),
			applogger.Int("min_list_years", c.minListYears),
		)
	}
	return out, nil
}

func (c *FileCatalog) loadFile(ctx context.Context, path, exchange, suffix string) ([]models.Instrument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open listing: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []models.Instrument
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read listing: %w", err)
		}
		if first {
			first = false
			// Skip a header row if present.
			if strings.EqualFold(rec[0], "code") {
				continue
			}
		}
		if len(rec) < 3 {
			continue
		}

		ins := models.Instrument{
			Symbol:   padCode(rec[0]) + suffix,
			Name:     strings.TrimSpace(rec[1]),
			Exchange: exchange,
			ListDate: normalizeDate(rec[2]),
		}
		if c.excludeST && ins.IsST() {
			continue
		}
		if c.minListYears > 0 && !listedLongEnough(ins.ListDate, c.minListYears) {
			continue
		}
		out = append(out, ins)
	}
	return out, nil
}

// padCode left-pads a bare numeric code to six digits, matching the
// exchange file format where leading zeros are often dropped.
func padCode(code string) string {
	code = strings.TrimSpace(code)
	for len(code) < 6 {
		code = "0" + code
	}
	return code
}

// normalizeDate accepts "1991-04-03" or "19910403" and returns YYYYMMDD.
func normalizeDate(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "-", "")
}

func listedLongEnough(listDate string, minYears int) bool {
	t, err := time.Parse("20060102", listDate)
	if err != nil {
		return false
	}
	years := time.Since(t).Hours() / 24 / 365.25
	return years >= float64(minYears)
}
