/*
Package openweather implements forecast.Supplier against the
OpenWeatherMap 5-day forecast API.

PURPOSE:
  Fetches the hourly forecast list for one city and normalizes each
  forecast slot into a forecast.Record: raw Kelvin temperature, derived
  Celsius temperature, and the structured condition.

RESILIENCE:
  Requests run through a circuit breaker with bounded exponential
  backoff (client.go). Retry tuning lives here at the boundary; the
  reconciliation core never sees transport concerns.

API SHAPE:
  GET /data/2.5/forecast?q={city}&cnt={hours}&appid={key}
  Each list item carries dt_txt (slot timestamp), main.temp (Kelvin)
  and weather[0].main/description.

SEE ALSO:
  - forecast/types.go: Record and Payload definitions
  - ingest/runner.go: The consumer of this supplier
*/
package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/warp/forecast-engine/forecast"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/forecast"

// slotLayout is the dt_txt timestamp format, always UTC.
const slotLayout = "2006-01-02 15:04:05"

// Supplier implements forecast.Supplier for OpenWeatherMap.
type Supplier struct {
	apiKey  string
	city    string
	hours   int
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

// New creates a supplier for one city. hours caps how many forecast
// slots are requested per run.
func New(client *http.Client, apiKey, city string, hours int) *Supplier {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Supplier{
		apiKey:  apiKey,
		city:    city,
		hours:   hours,
		baseURL: defaultBaseURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (s *Supplier) WithBaseURL(baseURL string) *Supplier {
	s.baseURL = baseURL
	return s
}

// Forecasts fetches the forecast list and returns one normalized
// record per forecast slot, all stamped with the same observation
// time.
func (s *Supplier) Forecasts(ctx context.Context) ([]forecast.Record, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("openweather api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("q", s.city)
		values.Set("cnt", fmt.Sprintf("%d", s.hours))
		values.Set("appid", s.apiKey)

		u := fmt.Sprintf("%s?%s", s.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		List []struct {
			DtTxt string `json:"dt_txt"`
			Main  struct {
				Temp float64 `json:"temp"`
			} `json:"main"`
			Weather []struct {
				Main        string `json:"main"`
				Description string `json:"description"`
			} `json:"weather"`
		} `json:"list"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode forecast response: %w", err)
	}

	observedAt := s.now()
	records := make([]forecast.Record, 0, len(payload.List))
	for _, item := range payload.List {
		slot, err := time.ParseInLocation(slotLayout, item.DtTxt, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse forecast slot %q: %w", item.DtTxt, err)
		}

		var cond forecast.Condition
		if len(item.Weather) > 0 {
			cond = forecast.Condition{
				Main:        item.Weather[0].Main,
				Description: item.Weather[0].Description,
			}
		}

		records = append(records, forecast.Record{
			Slot:       slot,
			Payload:    forecast.NewPayload(decimal.NewFromFloat(item.Main.Temp), cond),
			ObservedAt: observedAt,
		})
	}

	return records, nil
}
