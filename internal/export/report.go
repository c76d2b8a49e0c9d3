// Package export renders analysis reports and their spatial outputs.
package export

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/parking-stats/internal/analysis"
)

// Format is a report serialisation.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", eris.Errorf("export: unknown format %q", s)
	}
}

// WriteReport encodes r to w.
func WriteReport(w io.Writer, r *analysis.Report, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return eris.Wrap(err, "export: encode json report")
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return eris.Wrap(err, "export: encode yaml report")
		}
		if err := enc.Close(); err != nil {
			return eris.Wrap(err, "export: flush yaml report")
		}
		return nil
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

// WriteReportFile writes r to path, or to stdout when path is empty or "-".
func WriteReportFile(path string, r *analysis.Report, format Format) error {
	if path == "" || path == "-" {
		return WriteReport(os.Stdout, r, format)
	}
	return writeFile(path, func(w io.Writer) error { return WriteReport(w, r, format) })
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "export: close %s", path)
	}
	return nil
}
