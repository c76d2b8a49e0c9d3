package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/parking-stats/internal/model"
)

type column int

const (
	colCountry column = iota
	colState
	colCity
	colCounty
	colLat
	colLon
	colTotal
	colAvg
	colBoundary
	colGeohash
)

var columnNames = map[column]string{
	colCountry:  "Country",
	colState:    "State",
	colCity:     "City",
	colCounty:   "County",
	colLat:      "Latitude",
	colLon:      "Longitude",
	colTotal:    "TotalSearching",
	colAvg:      "AvgTimeToPark",
	colBoundary: "GeohashBounds",
	colGeohash:  "Geohash",
}

// aliases maps folded header text (spaces and underscores removed) to a column.
var aliases = map[string]column{
	"country":        colCountry,
	"state":          colState,
	"city":           colCity,
	"county":         colCounty,
	"latitude":       colLat,
	"lat":            colLat,
	"longitude":      colLon,
	"lon":            colLon,
	"lng":            colLon,
	"long":           colLon,
	"totalsearching": colTotal,
	"avgtimetopark":  colAvg,
	"geohashbounds":  colBoundary,
	"bounds":         colBoundary,
	"geohash":        colGeohash,
}

var required = []column{colCountry, colState, colCity, colCounty, colLat, colLon, colTotal, colAvg, colBoundary}

// Skip records a data row that could not become an observation.
type Skip struct {
	Row    int    `json:"row" yaml:"row"` // 1-based data row, header excluded
	Reason string `json:"reason" yaml:"reason"`
}

type rowParser struct {
	idx       map[column]int
	countries *CountryNormalizer
	title     cases.Caser
}

func headerKey(fold cases.Caser, h string) string {
	k := fold.String(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(k)
}

func newRowParser(header []string, countries *CountryNormalizer) (*rowParser, error) {
	fold := cases.Fold()
	idx := make(map[column]int, len(header))
	for i, h := range header {
		c, ok := aliases[headerKey(fold, h)]
		if !ok {
			continue
		}
		if _, dup := idx[c]; !dup {
			idx[c] = i
		}
	}

	var missing []string
	for _, c := range required {
		if _, ok := idx[c]; !ok {
			missing = append(missing, columnNames[c])
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("ingest: missing required columns %v", missing)
	}

	return &rowParser{
		idx:       idx,
		countries: countries,
		title:     cases.Title(language.English),
	}, nil
}

func (p *rowParser) get(row []string, c column) string {
	i, ok := p.idx[c]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parse converts one data row. A non-empty reason means the row was skipped.
func (p *rowParser) parse(n int, row []string) (model.Observation, string) {
	lat, err := parseFloat(p.get(row, colLat))
	if err != nil {
		return model.Observation{}, "latitude: " + err.Error()
	}
	if lat < -90 || lat > 90 {
		return model.Observation{}, fmt.Sprintf("latitude %g out of range", lat)
	}
	lon, err := parseFloat(p.get(row, colLon))
	if err != nil {
		return model.Observation{}, "longitude: " + err.Error()
	}
	if lon < -180 || lon > 180 {
		return model.Observation{}, fmt.Sprintf("longitude %g out of range", lon)
	}
	avg, err := parseFloat(p.get(row, colAvg))
	if err != nil {
		return model.Observation{}, "avg time to park: " + err.Error()
	}
	if avg < 0 {
		return model.Observation{}, "avg time to park is negative"
	}
	total, err := parseCount(p.get(row, colTotal))
	if err != nil {
		return model.Observation{}, "total searching: " + err.Error()
	}

	id := p.get(row, colGeohash)
	if id == "" {
		id = "row-" + strconv.Itoa(n)
	}

	return model.Observation{
		ID:             id,
		Country:        p.countries.Normalize(p.get(row, colCountry)),
		State:          p.get(row, colState),
		City:           p.title.String(p.get(row, colCity)),
		County:         p.get(row, colCounty),
		Lat:            lat,
		Lon:            lon,
		AvgTimeToPark:  avg,
		TotalSearching: total,
		Boundary:       p.get(row, colBoundary),
	}, ""
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, eris.New("missing")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, eris.Errorf("invalid number %q", s)
	}
	return v, nil
}

// parseCount accepts integral values written as "12" or "12.0".
func parseCount(s string) (int, error) {
	v, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, eris.New("negative")
	}
	if v != math.Trunc(v) {
		return 0, eris.Errorf("not a whole number %q", s)
	}
	return int(v), nil
}
