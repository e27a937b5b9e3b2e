// Package weather queries weatherapi.com for current conditions, air quality and a forecast.
package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"zeta/pkg/config"
	"zeta/pkg/tools"
)

const (
	Name        = "weather"
	DefaultCity = "Istanbul"

	forecastDays = 5
)

// Location identifies the resolved place.
type Location struct {
	City      string  `json:"city"`
	Country   string  `json:"country"`
	Region    string  `json:"region"`
	LocalTime string  `json:"localtime"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// Level is a labelled severity band.
type Level struct {
	Level       string `json:"level"`
	Emoji       string `json:"emoji"`
	Description string `json:"desc,omitempty"`
}

// Current is the present conditions block.
type Current struct {
	Emoji        string  `json:"emoji"`
	TempC        int     `json:"temp_c"`
	FeelsLikeC   int     `json:"feels_like_c"`
	Condition    string  `json:"condition"`
	Humidity     int     `json:"humidity"`
	WindKph      int     `json:"wind_kph"`
	WindDir      string  `json:"wind_dir"`
	PressureMb   float64 `json:"pressure_mb"`
	VisibilityKm float64 `json:"visibility_km"`
	UV           float64 `json:"uv"`
	UVInfo       Level   `json:"uvInfo"`
	Cloud        int     `json:"cloud"`
	IsDay        bool    `json:"is_day"`
}

// AirQuality is derived from the US EPA index.
type AirQuality struct {
	Value int `json:"value"`
	Level
	PM25 int `json:"pm2_5,omitempty"`
	PM10 int `json:"pm10,omitempty"`
	CO   int `json:"co,omitempty"`
}

// Day is one forecast entry.
type Day struct {
	Date         string  `json:"date"`
	Emoji        string  `json:"emoji"`
	Condition    string  `json:"condition"`
	MaxTempC     int     `json:"maxtemp_c"`
	MinTempC     int     `json:"mintemp_c"`
	ChanceOfRain int     `json:"chance_of_rain"`
	AvgHumidity  int     `json:"avghumidity"`
	UV           float64 `json:"uv"`
	Sunrise      string  `json:"sunrise"`
	Sunset       string  `json:"sunset"`
}

// Alert is one active weather warning.
type Alert struct {
	Title    string `json:"title"`
	Severity string `json:"severity"`
	Desc     string `json:"desc"`
}

// Report is the data payload for a single city.
type Report struct {
	Type       string      `json:"type"`
	Location   Location    `json:"location"`
	Current    Current     `json:"current"`
	AirQuality *AirQuality `json:"airQuality,omitempty"`
	Forecast   []Day       `json:"forecast"`
	Alerts     []Alert     `json:"alerts"`
}

// Comparison is the data payload when several cities are requested.
type Comparison struct {
	Type   string   `json:"type"`
	Cities []Report `json:"cities"`
}

// Tool implements tools.Tool for weather lookups.
type Tool struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates the weather capability from its endpoint config.
func New(cfg config.EndpointConfig) *Tool {
	return &Tool{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  tools.NewHTTPClient(cfg.TimeoutSeconds),
	}
}

func (t *Tool) Name() string { return Name }

func (t *Tool) Description() string {
	return "Gelişmiş hava durumu: 5 günlük tahmin, hava kalitesi, UV indeksi, çoklu şehir karşılaştırma"
}

func (t *Tool) Execute(ctx context.Context, params tools.Params) (tools.Result, error) {
	if t.apiKey == "" {
		return tools.Fail("WEATHER_API_KEY tanımlı değil."), nil
	}

	if cities := stringList(params["cities"]); len(cities) > 1 {
		comparison := Comparison{Type: "comparison"}
		for _, city := range cities {
			report, err := t.fetch(ctx, city, 1)
			if err != nil {
				continue
			}
			comparison.Cities = append(comparison.Cities, report)
		}
		return tools.OK(comparison), nil
	}

	city := params.String("city")
	if city == "" {
		city = DefaultCity
	}

	report, err := t.fetch(ctx, city, forecastDays)
	if err != nil {
		var httpErr *tools.HTTPError
		if errors.As(err, &httpErr) {
			if msg := gjson.GetBytes(httpErr.Body, "error.message").String(); msg != "" {
				return tools.Fail("Hava durumu hatası: %s", msg), nil
			}
		}
		return tools.Fail("Hava durumu bilgisi alınamadı."), nil
	}

	return tools.OK(report), nil
}

func (t *Tool) fetch(ctx context.Context, city string, days int) (Report, error) {
	query := url.Values{}
	query.Set("key", t.apiKey)
	query.Set("q", city)
	query.Set("days", strconv.Itoa(days))
	query.Set("aqi", "yes")
	query.Set("alerts", "yes")
	query.Set("lang", "tr")

	body, err := tools.Fetch(ctx, t.client, t.baseURL, "/forecast.json", query, nil)
	if err != nil {
		return Report{}, fmt.Errorf("fetch forecast for %s: %w", city, err)
	}

	return parseReport(body), nil
}

func parseReport(body []byte) Report {
	doc := gjson.ParseBytes(body)
	loc := doc.Get("location")
	cur := doc.Get("current")

	isDay := cur.Get("is_day").Int() == 1
	uv := cur.Get("uv").Float()

	report := Report{
		Type: "full",
		Location: Location{
			City:      loc.Get("name").String(),
			Country:   loc.Get("country").String(),
			Region:    loc.Get("region").String(),
			LocalTime: loc.Get("localtime").String(),
			Lat:       loc.Get("lat").Float(),
			Lon:       loc.Get("lon").Float(),
		},
		Current: Current{
			Emoji:        conditionEmoji(cur.Get("condition.text").String(), isDay),
			TempC:        round(cur.Get("temp_c").Float()),
			FeelsLikeC:   round(cur.Get("feelslike_c").Float()),
			Condition:    cur.Get("condition.text").String(),
			Humidity:     int(cur.Get("humidity").Int()),
			WindKph:      round(cur.Get("wind_kph").Float()),
			WindDir:      cur.Get("wind_dir").String(),
			PressureMb:   cur.Get("pressure_mb").Float(),
			VisibilityKm: cur.Get("vis_km").Float(),
			UV:           uv,
			UVInfo:       uvLevel(uv),
			Cloud:        int(cur.Get("cloud").Int()),
			IsDay:        isDay,
		},
		Forecast: []Day{},
		Alerts:   []Alert{},
	}

	if aq := cur.Get("air_quality"); aq.Exists() {
		if value := round(aq.Get("us-epa-index").Float() * 50); value > 0 {
			report.AirQuality = &AirQuality{
				Value: value,
				Level: aqiLevel(value),
				PM25:  round(aq.Get("pm2_5").Float()),
				PM10:  round(aq.Get("pm10").Float()),
				CO:    round(aq.Get("co").Float()),
			}
		}
	}

	doc.Get("forecast.forecastday").ForEach(func(_, day gjson.Result) bool {
		condition := day.Get("day.condition.text").String()
		report.Forecast = append(report.Forecast, Day{
			Date:         formatDate(day.Get("date").String()),
			Emoji:        conditionEmoji(condition, true),
			Condition:    condition,
			MaxTempC:     round(day.Get("day.maxtemp_c").Float()),
			MinTempC:     round(day.Get("day.mintemp_c").Float()),
			ChanceOfRain: int(day.Get("day.daily_chance_of_rain").Int()),
			AvgHumidity:  int(day.Get("day.avghumidity").Int()),
			UV:           day.Get("day.uv").Float(),
			Sunrise:      day.Get("astro.sunrise").String(),
			Sunset:       day.Get("astro.sunset").String(),
		})
		return true
	})

	doc.Get("alerts.alert").ForEach(func(_, alert gjson.Result) bool {
		report.Alerts = append(report.Alerts, Alert{
			Title:    alert.Get("headline").String(),
			Severity: alert.Get("severity").String(),
			Desc:     alert.Get("desc").String(),
		})
		return true
	})

	return report
}

func conditionEmoji(condition string, isDay bool) string {
	c := strings.ToLower(condition)
	switch {
	case strings.Contains(c, "sunny"), strings.Contains(c, "clear"):
		if isDay {
			return "☀️"
		}
		return "🌙"
	case strings.Contains(c, "partly cloudy"):
		if isDay {
			return "⛅"
		}
		return "🌙"
	case strings.Contains(c, "cloudy"), strings.Contains(c, "overcast"):
		return "☁️"
	case strings.Contains(c, "rain"), strings.Contains(c, "drizzle"):
		return "🌧️"
	case strings.Contains(c, "thunder"), strings.Contains(c, "storm"):
		return "⛈️"
	case strings.Contains(c, "snow"), strings.Contains(c, "blizzard"):
		return "❄️"
	case strings.Contains(c, "fog"), strings.Contains(c, "mist"):
		return "🌫️"
	case strings.Contains(c, "wind"):
		return "💨"
	default:
		return "🌡️"
	}
}

func aqiLevel(aqi int) Level {
	switch {
	case aqi <= 50:
		return Level{Level: "İyi", Emoji: "🟢", Description: "Hava kalitesi iyi, dışarı çıkabilirsiniz."}
	case aqi <= 100:
		return Level{Level: "Orta", Emoji: "🟡", Description: "Hassas gruplar dikkat etmeli."}
	case aqi <= 150:
		return Level{Level: "Hassas", Emoji: "🟠", Description: "Hassas gruplar için sağlıksız."}
	case aqi <= 200:
		return Level{Level: "Sağlıksız", Emoji: "🔴", Description: "Herkes için sağlıksız."}
	case aqi <= 300:
		return Level{Level: "Çok Sağlıksız", Emoji: "🟣", Description: "Dışarı çıkmaktan kaçının."}
	default:
		return Level{Level: "Tehlikeli", Emoji: "⚫", Description: "Acil durum koşulları."}
	}
}

func uvLevel(uv float64) Level {
	switch {
	case uv <= 2:
		return Level{Level: "Düşük", Emoji: "🟢"}
	case uv <= 5:
		return Level{Level: "Orta", Emoji: "🟡"}
	case uv <= 7:
		return Level{Level: "Yüksek", Emoji: "🟠"}
	case uv <= 10:
		return Level{Level: "Çok Yüksek", Emoji: "🔴"}
	default:
		return Level{Level: "Aşırı", Emoji: "⚫"}
	}
}

// formatDate renders 2026-10-17 as "17 Ekim Cumartesi".
func formatDate(value string) string {
	day, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return value
	}
	return tools.TurkishDayName(day)
}

func round(value float64) int {
	return int(math.Round(value))
}

func stringList(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	default:
		return nil
	}
}
