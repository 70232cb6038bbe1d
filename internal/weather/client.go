// Package weather looks up hourly forecasts from Open-Meteo. Lookups are
// best effort: every failure yields a missing observation, never an error.
package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alexanderramin/sortir/internal/logging"
	"github.com/alexanderramin/sortir/internal/metrics"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const breakerName = "open-meteo"

// Config holds weather lookup settings.
type Config struct {
	Enabled       bool          `koanf:"enabled"`
	Endpoint      string        `koanf:"endpoint" validate:"required,url"`
	TargetHour    int           `koanf:"target_hour" validate:"gte=0,lte=23"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
	RatePerSecond float64       `koanf:"rate_per_second" validate:"gt=0"`
	Burst         int           `koanf:"burst" validate:"gte=1"`
	Concurrency   int           `koanf:"concurrency" validate:"gte=1"`
}

// DefaultConfig returns settings for the public Open-Meteo API.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Endpoint:      "https://api.open-meteo.com/v1/forecast",
		TargetHour:    18,
		Timeout:       15 * time.Second,
		RatePerSecond: 5,
		Burst:         5,
		Concurrency:   4,
	}
}

// Observation is the forecast at one place and hour. Nil means missing.
type Observation struct {
	Temperature     *float64
	RainProbability *float64
}

// Client queries Open-Meteo through a rate limiter and circuit breaker.
type Client struct {
	cfg     Config
	loc     *time.Location
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[*forecast]
}

// NewClient creates a weather client. Forecast hours are requested and read
// in loc.
func NewClient(cfg Config, loc *time.Location) *Client {
	if loc == nil {
		loc = time.Local
	}
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[*forecast](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Client{
		cfg:     cfg,
		loc:     loc,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cb:      cb,
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

type forecast struct {
	Hourly struct {
		Time                     []string   `json:"time"`
		Temperature2m            []*float64 `json:"temperature_2m"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
	} `json:"hourly"`
}

// Lookup returns the forecast for the hour nearest to at. Any failure
// yields an empty Observation.
func (c *Client) Lookup(ctx context.Context, lat, lon float64, at time.Time) Observation {
	log := logging.Ctx(ctx)

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.WeatherLookups.WithLabelValues("missing").Inc()
		return Observation{}
	}

	fc, err := c.cb.Execute(func() (*forecast, error) {
		return c.fetch(ctx, lat, lon)
	})
	if err != nil {
		result := "missing"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
		metrics.WeatherLookups.WithLabelValues(result).Inc()
		log.Debug().Err(err).Float64("lat", lat).Float64("lon", lon).Msg("weather lookup failed")
		return Observation{}
	}

	obs := c.nearest(fc, at)
	if obs.Temperature == nil && obs.RainProbability == nil {
		metrics.WeatherLookups.WithLabelValues("missing").Inc()
	} else {
		metrics.WeatherLookups.WithLabelValues("ok").Inc()
	}
	return obs
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) (*forecast, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("hourly", "temperature_2m,precipitation_probability")
	q.Set("timezone", c.loc.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("open-meteo returned status %d", resp.StatusCode)
	}

	var fc forecast
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decoding forecast: %w", err)
	}
	return &fc, nil
}

// nearest picks the forecast hour closest to at. Series of unequal length
// are read up to the shortest.
func (c *Client) nearest(fc *forecast, at time.Time) Observation {
	h := fc.Hourly
	n := min(len(h.Time), len(h.Temperature2m), len(h.PrecipitationProbability))

	best := -1
	var bestDiff time.Duration
	for i := 0; i < n; i++ {
		t, err := time.ParseInLocation("2006-01-02T15:04", h.Time[i], c.loc)
		if err != nil {
			continue
		}
		diff := t.Sub(at)
		if diff < 0 {
			diff = -diff
		}
		if best == -1 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	if best == -1 {
		return Observation{}
	}

	var obs Observation
	if v := h.Temperature2m[best]; v != nil && !math.IsNaN(*v) {
		obs.Temperature = ptr(math.Round(*v*10) / 10)
	}
	if v := h.PrecipitationProbability[best]; v != nil && !math.IsNaN(*v) {
		obs.RainProbability = ptr(math.Round(math.Max(0, math.Min(100, *v))))
	}
	return obs
}

func ptr(v float64) *float64 { return &v }
