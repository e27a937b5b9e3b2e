package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"zeta/pkg/config"
	"zeta/pkg/tools"
)

const forecastFixture = `{
  "location": {"name": "Ankara", "region": "Ankara", "country": "Turkey", "lat": 39.93, "lon": 32.86, "localtime": "2026-10-17 14:00"},
  "current": {
    "temp_c": 18.6, "feelslike_c": 17.2, "is_day": 1,
    "condition": {"text": "Partly cloudy"},
    "humidity": 40, "wind_kph": 11.5, "wind_dir": "NE", "pressure_mb": 1016, "vis_km": 10, "uv": 4, "cloud": 25,
    "air_quality": {"us-epa-index": 1, "pm2_5": 7.6, "pm10": 12.2, "co": 210.4}
  },
  "forecast": {"forecastday": [
    {"date": "2026-10-17", "day": {"maxtemp_c": 20.4, "mintemp_c": 9.5, "daily_chance_of_rain": 10, "avghumidity": 45, "uv": 4, "condition": {"text": "Sunny"}}, "astro": {"sunrise": "07:12 AM", "sunset": "06:21 PM"}},
    {"date": "2026-10-18", "day": {"maxtemp_c": 16.1, "mintemp_c": 8.0, "daily_chance_of_rain": 80, "avghumidity": 70, "uv": 2, "condition": {"text": "Light rain"}}, "astro": {"sunrise": "07:13 AM", "sunset": "06:19 PM"}}
  ]},
  "alerts": {"alert": [{"headline": "Rüzgar uyarısı", "severity": "Moderate", "desc": "Kuvvetli rüzgar"}]}
}`

type queryRecorder struct {
	mu      sync.Mutex
	queries []string
}

func (r *queryRecorder) add(q string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
}

func (r *queryRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

func TestExecuteParsesForecast(t *testing.T) {
	var rec queryRecorder
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forecast.json" {
			t.Errorf("path = %q, want /forecast.json", r.URL.Path)
		}
		rec.add(r.URL.Query().Get("q"))
		if r.URL.Query().Get("days") != "5" || r.URL.Query().Get("lang") != "tr" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(forecastFixture))
	}))
	defer server.Close()

	tool := New(config.EndpointConfig{BaseURL: server.URL, APIKey: "k"})
	result, err := tool.Execute(context.Background(), tools.Params{"city": "Ankara"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if got := rec.all(); len(got) != 1 || got[0] != "Ankara" {
		t.Fatalf("queries = %v, want [Ankara]", got)
	}

	report := result.Data.(Report)
	if report.Location.City != "Ankara" || report.Current.TempC != 19 || report.Current.FeelsLikeC != 17 {
		t.Fatalf("report = %+v", report)
	}
	if report.Current.Emoji != "⛅" || report.Current.UVInfo.Level != "Orta" {
		t.Fatalf("current = %+v", report.Current)
	}
	if report.AirQuality == nil || report.AirQuality.Value != 50 || report.AirQuality.Level.Level != "İyi" {
		t.Fatalf("air quality = %+v", report.AirQuality)
	}
	if len(report.Forecast) != 2 || report.Forecast[0].Date != "17 Ekim Cumartesi" || report.Forecast[1].Emoji != "🌧️" {
		t.Fatalf("forecast = %+v", report.Forecast)
	}
	if len(report.Alerts) != 1 || report.Alerts[0].Title != "Rüzgar uyarısı" {
		t.Fatalf("alerts = %+v", report.Alerts)
	}
}

func TestExecuteDefaultsToIstanbul(t *testing.T) {
	var rec queryRecorder
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(forecastFixture))
	}))
	defer server.Close()

	tool := New(config.EndpointConfig{BaseURL: server.URL, APIKey: "k"})
	if _, err := tool.Execute(context.Background(), tools.Params{}); err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if got := rec.all(); len(got) != 1 || got[0] != DefaultCity {
		t.Fatalf("queries = %v, want [%s]", got, DefaultCity)
	}
}

func TestExecuteMissingKey(t *testing.T) {
	result, err := New(config.EndpointConfig{}).Execute(context.Background(), tools.Params{"city": "Izmir"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if result.Success || result.Error != "WEATHER_API_KEY tanımlı değil." {
		t.Fatalf("result = %+v", result)
	}
}

func TestExecuteUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"code": 1006, "message": "No matching location found."}}`))
	}))
	defer server.Close()

	result, err := New(config.EndpointConfig{BaseURL: server.URL, APIKey: "k"}).Execute(context.Background(), tools.Params{"city": "Atlantis"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if result.Success || result.Error != "Hava durumu hatası: No matching location found." {
		t.Fatalf("result = %+v", result)
	}
}

func TestExecuteComparison(t *testing.T) {
	var rec queryRecorder
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.URL.Query().Get("q"))
		if r.URL.Query().Get("q") == "Nowhere" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(forecastFixture))
	}))
	defer server.Close()

	tool := New(config.EndpointConfig{BaseURL: server.URL, APIKey: "k"})
	result, err := tool.Execute(context.Background(), tools.Params{"cities": []any{"Ankara", "Nowhere", "Izmir"}})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	comparison := result.Data.(Comparison)
	if calls := len(rec.all()); calls != 3 || len(comparison.Cities) != 2 {
		t.Fatalf("calls = %d, cities = %d", calls, len(comparison.Cities))
	}
}
