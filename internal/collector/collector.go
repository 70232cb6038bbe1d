// Package collector fetches the public-events dataset from a CKAN open-data
// catalog.
package collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alexanderramin/sortir/internal/logging"
	"github.com/alexanderramin/sortir/internal/normalize"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
)

var (
	// ErrNoDataset indicates the catalog search returned no package.
	ErrNoDataset = errors.New("dataset not found in catalog")

	// ErrNoResource indicates the package has no CSV or JSON resource.
	ErrNoResource = errors.New("no csv/json resource in dataset")
)

// Config holds catalog settings.
type Config struct {
	CatalogURL  string        `koanf:"catalog_url" validate:"required,url"`
	Query       string        `koanf:"query" validate:"required"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	Incremental bool          `koanf:"incremental"`
}

// DefaultConfig targets the Montréal open-data portal.
func DefaultConfig() Config {
	return Config{
		CatalogURL:  "https://donnees.montreal.ca/api/3/action",
		Query:       "evenements publics",
		Timeout:     60 * time.Second,
		Incremental: true,
	}
}

// Collector downloads raw rows.
type Collector struct {
	cfg  Config
	loc  *time.Location
	http *http.Client
	cb   *gobreaker.CircuitBreaker[[]normalize.RawRecord]
	now  func() time.Time
}

// New creates a collector. loc interprets naive start dates when narrowing
// by last run.
func New(cfg Config, loc *time.Location) *Collector {
	return &Collector{
		cfg:  cfg,
		loc:  loc,
		http: &http.Client{Timeout: cfg.Timeout},
		cb: gobreaker.NewCircuitBreaker[[]normalize.RawRecord](gobreaker.Settings{
			Name:    "ckan",
			Timeout: time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
		now: time.Now,
	}
}

type packageSearch struct {
	Success bool `json:"success"`
	Result  struct {
		Results []struct {
			Name      string     `json:"name"`
			Resources []resource `json:"resources"`
		} `json:"results"`
	} `json:"result"`
}

type resource struct {
	Format string `json:"format"`
	URL    string `json:"url"`
}

// Collect returns the dataset rows and the run timestamp (UTC). When since
// is set and incremental mode is on, rows starting before since are
// dropped; rows with an unparsable start date are kept.
func (c *Collector) Collect(ctx context.Context, since *time.Time) ([]normalize.RawRecord, time.Time, error) {
	runAt := c.now().UTC()

	rows, err := c.cb.Execute(func() ([]normalize.RawRecord, error) {
		res, err := c.findResource(ctx)
		if err != nil {
			return nil, err
		}
		logging.Ctx(ctx).Debug().Str("url", res.URL).Str("format", res.Format).Msg("downloading dataset")
		return c.download(ctx, res)
	})
	if err != nil {
		return nil, runAt, fmt.Errorf("collecting events: %w", err)
	}

	if since != nil && c.cfg.Incremental {
		rows = sinceFilter(rows, *since, c.loc)
	}
	return rows, runAt, nil
}

func (c *Collector) findResource(ctx context.Context) (resource, error) {
	u := strings.TrimRight(c.cfg.CatalogURL, "/") + "/package_search?" + url.Values{"q": {c.cfg.Query}}.Encode()
	body, err := c.get(ctx, u)
	if err != nil {
		return resource{}, err
	}
	defer body.Close()

	var ps packageSearch
	if err := json.NewDecoder(body).Decode(&ps); err != nil {
		return resource{}, fmt.Errorf("decoding package_search: %w", err)
	}
	if len(ps.Result.Results) == 0 {
		return resource{}, ErrNoDataset
	}
	for _, r := range ps.Result.Results[0].Resources {
		switch strings.ToLower(r.Format) {
		case "csv", "json":
			return r, nil
		}
	}
	return resource{}, ErrNoResource
}

func (c *Collector) download(ctx context.Context, res resource) ([]normalize.RawRecord, error) {
	body, err := c.get(ctx, res.URL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if strings.EqualFold(res.Format, "csv") {
		return DecodeCSV(body)
	}
	return DecodeJSON(body)
}

func (c *Collector) get(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}
	return resp.Body, nil
}

// DecodeCSV reads a header row followed by data rows. Empty cells are
// absent from the resulting record.
func DecodeCSV(r io.Reader) ([]normalize.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []normalize.RawRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows []normalize.RawRecord
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row %d: %w", len(rows)+1, err)
		}
		row := make(normalize.RawRecord, len(header))
		for i, col := range header {
			if i < len(rec) && rec[i] != "" {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// DecodeJSON reads an array of objects.
func DecodeJSON(r io.Reader) ([]normalize.RawRecord, error) {
	var rows []normalize.RawRecord
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding json dataset: %w", err)
	}
	return rows, nil
}

func sinceFilter(rows []normalize.RawRecord, since time.Time, loc *time.Location) []normalize.RawRecord {
	out := rows[:0:0]
	for _, row := range rows {
		v, _ := row["date_debut"].(string)
		start := normalize.ParseTime(v, loc)
		if start == nil || !start.Before(since) {
			out = append(out, row)
		}
	}
	return out
}
