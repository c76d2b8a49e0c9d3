// Package ingest loads parking observations from CSV and XLSX files.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter rune // default ','
	// Encoding is a WHATWG encoding label ("utf-8", "windows-1252", ...).
	Encoding string
	HeaderCh chan<- []string // receives the first row; required
}

// decodeReader wraps r so that it yields UTF-8 for the named encoding.
func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	label := strings.ToLower(strings.TrimSpace(encoding))
	if label == "" || label == "utf-8" || label == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: unsupported encoding %q", encoding)
	}
	return enc.NewDecoder().Reader(r), nil
}

// StreamCSV reads r and sends the header to opts.HeaderCh and every other row
// to the returned row channel. Fields are trimmed. Both returned channels are
// closed when processing completes; the header channel is never closed.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		src, err := decodeReader(r, opts.Encoding)
		if err != nil {
			errCh <- err
			return
		}
		reader := csv.NewReader(src)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				if first {
					errCh <- eris.New("csv: empty file")
				}
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			if first {
				first = false
				// Excel exports often start with a UTF-8 byte order mark.
				record[0] = strings.TrimPrefix(record[0], "\ufeff")
				select {
				case opts.HeaderCh <- record:
				case <-ctx.Done():
					errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
					return
				}
				continue
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
