package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/parking-stats/internal/config"
	"github.com/sells-group/parking-stats/internal/model"
)

// Options configures Load.
type Options struct {
	Sheet        string // XLSX only; empty selects the first sheet
	Encoding     string // CSV only
	CountryCodes map[string]string
}

// OptionsFromConfig converts the ingest configuration section.
func OptionsFromConfig(cfg config.IngestConfig) Options {
	return Options{Sheet: cfg.Sheet, Encoding: cfg.Encoding, CountryCodes: cfg.CountryCodes}
}

// Result holds the observations read from one file.
type Result struct {
	Observations []model.Observation
	Rows         int
	Skipped      []Skip
}

// Load reads observations from a .csv or .xlsx file.
func Load(ctx context.Context, path string, opts Options) (*Result, error) {
	var (
		res *Result
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt":
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, eris.Wrapf(openErr, "ingest: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		res, err = ReadCSV(ctx, f, opts)
	case ".xlsx":
		header, rows, readErr := ReadXLSX(path, opts.Sheet)
		if readErr != nil {
			return nil, readErr
		}
		res, err = FromRows(header, rows, opts)
	default:
		return nil, eris.Errorf("ingest: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, err
	}

	zap.L().With(zap.String("component", "ingest")).Info("loaded observations",
		zap.String("path", path),
		zap.Int("rows", res.Rows),
		zap.Int("observations", len(res.Observations)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

// ReadCSV parses CSV observations from r.
func ReadCSV(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(ctx, r, CSVOptions{Encoding: opts.Encoding, HeaderCh: headerCh})

	countries := NewCountryNormalizer(opts.CountryCodes)
	res := &Result{}
	var p *rowParser
	var parseErr error
	for row := range rowCh {
		if parseErr != nil {
			continue // drain so the reader goroutine can exit
		}
		if p == nil {
			// The header is sent before the first row.
			p, parseErr = newRowParser(<-headerCh, countries)
			if parseErr != nil {
				continue
			}
		}
		res.add(p, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if p == nil {
		// Header only: still validate it.
		select {
		case header := <-headerCh:
			if _, err := newRowParser(header, countries); err != nil {
				return nil, err
			}
		default:
		}
	}
	return res, nil
}

// FromRows parses observations from an already split header and data rows.
func FromRows(header []string, rows [][]string, opts Options) (*Result, error) {
	p, err := newRowParser(header, NewCountryNormalizer(opts.CountryCodes))
	if err != nil {
		return nil, err
	}
	res := &Result{}
	for _, row := range rows {
		res.add(p, row)
	}
	return res, nil
}

func (r *Result) add(p *rowParser, row []string) {
	r.Rows++
	obs, reason := p.parse(r.Rows, row)
	if reason != "" {
		r.Skipped = append(r.Skipped, Skip{Row: r.Rows, Reason: reason})
		zap.L().Debug("ingest: skipped row", zap.Int("row", r.Rows), zap.String("reason", reason))
		return
	}
	r.Observations = append(r.Observations, obs)
}
