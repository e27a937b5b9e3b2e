// Package football reports recent results and league standings for Süper Lig teams via api-sports.
package football

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"zeta/pkg/config"
	"zeta/pkg/tools"
)

const (
	Name = "apiFootball"

	superLigID = 203
	lastN      = 5
	timezone   = "Europe/Istanbul"
)

// Team is a supported club and its api-sports id.
type Team struct {
	Key  string
	Name string
	ID   int
}

// Teams lists supported clubs in lookup order.
var Teams = []Team{
	{Key: "fenerbahçe", Name: "Fenerbahçe", ID: 610},
	{Key: "galatasaray", Name: "Galatasaray", ID: 609},
	{Key: "beşiktaş", Name: "Beşiktaş", ID: 611},
	{Key: "trabzonspor", Name: "Trabzonspor", ID: 612},
	{Key: "başakşehir", Name: "Başakşehir", ID: 645},
}

var standingsQuery = regexp.MustCompile(`(?i)puan|sıralama|tablo`)

// Match is one finished or scheduled fixture.
type Match struct {
	Date   string `json:"date"`
	Home   string `json:"home"`
	Away   string `json:"away"`
	Score  string `json:"score"`
	Status string `json:"status"`
	League string `json:"league"`
}

// Fixtures is the data payload for a team query.
type Fixtures struct {
	Team    string  `json:"team"`
	Matches []Match `json:"matches"`
}

// Standing is one league table row.
type Standing struct {
	Rank      int    `json:"rank"`
	Team      string `json:"team"`
	Points    int    `json:"points"`
	Played    int    `json:"played"`
	GoalsDiff int    `json:"goalsDiff"`
	Form      string `json:"form,omitempty"`
}

// Table is the data payload for a standings query.
type Table struct {
	League    string     `json:"league"`
	Season    int        `json:"season"`
	Standings []Standing `json:"standings"`
}

// Tool implements tools.Tool for football data.
type Tool struct {
	baseURL string
	apiKey  string
	client  *http.Client
	now     func() time.Time
}

// New creates the football capability.
func New(cfg config.EndpointConfig) *Tool {
	return &Tool{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  tools.NewHTTPClient(cfg.TimeoutSeconds),
		now:     time.Now,
	}
}

func (t *Tool) Name() string { return Name }

func (t *Tool) Description() string {
	return "Türk futbol takımlarının maç sonuçlarını ve fikstürünü getirir"
}

func (t *Tool) Execute(ctx context.Context, params tools.Params) (tools.Result, error) {
	if t.apiKey == "" {
		return tools.Fail("API_FOOTBALL_KEY tanımlı değil"), nil
	}

	query := strings.ToLower(params.String("query"))
	team, ok := findTeam(query)
	if !ok {
		if standingsQuery.MatchString(query) {
			return t.standings(ctx)
		}
		return tools.Fail("Takım bulunamadı. Desteklenen takımlar: %s", teamNames()), nil
	}

	values := url.Values{}
	values.Set("team", strconv.Itoa(team.ID))
	values.Set("last", strconv.Itoa(lastN))
	values.Set("timezone", timezone)

	body, err := tools.Fetch(ctx, t.client, t.baseURL, "/fixtures", values, t.headers())
	if err != nil {
		return tools.Fail("Maç bilgisi alınamadı: %v", err), nil
	}

	fixtures := Fixtures{Team: team.Name}
	gjson.GetBytes(body, "response").ForEach(func(_, f gjson.Result) bool {
		status := f.Get("fixture.status.long").String()
		if f.Get("fixture.status.short").String() == "FT" {
			status = "Bitti"
		}
		fixtures.Matches = append(fixtures.Matches, Match{
			Date:   matchDate(f.Get("fixture.date").String()),
			Home:   f.Get("teams.home.name").String(),
			Away:   f.Get("teams.away.name").String(),
			Score:  fmt.Sprintf("%s - %s", goals(f.Get("goals.home")), goals(f.Get("goals.away"))),
			Status: status,
			League: f.Get("league.name").String(),
		})
		return true
	})

	if len(fixtures.Matches) == 0 {
		return tools.Fail("Maç bulunamadı"), nil
	}
	return tools.OK(fixtures), nil
}

func (t *Tool) standings(ctx context.Context) (tools.Result, error) {
	season := seasonFor(t.now())

	values := url.Values{}
	values.Set("league", strconv.Itoa(superLigID))
	values.Set("season", strconv.Itoa(season))

	body, err := tools.Fetch(ctx, t.client, t.baseURL, "/standings", values, t.headers())
	if err != nil {
		return tools.Fail("Puan durumu alınamadı: %v", err), nil
	}

	league := gjson.GetBytes(body, "response.0.league")
	table := Table{League: league.Get("name").String(), Season: season}
	league.Get("standings.0").ForEach(func(_, row gjson.Result) bool {
		table.Standings = append(table.Standings, Standing{
			Rank:      int(row.Get("rank").Int()),
			Team:      row.Get("team.name").String(),
			Points:    int(row.Get("points").Int()),
			Played:    int(row.Get("all.played").Int()),
			GoalsDiff: int(row.Get("goalsDiff").Int()),
			Form:      row.Get("form").String(),
		})
		return true
	})

	if len(table.Standings) == 0 {
		return tools.Fail("Puan durumu bulunamadı"), nil
	}
	return tools.OK(table), nil
}

func (t *Tool) headers() map[string]string {
	host := strings.TrimPrefix(strings.TrimPrefix(t.baseURL, "https://"), "http://")
	return map[string]string{
		"x-rapidapi-key":  t.apiKey,
		"x-rapidapi-host": host,
	}
}

func findTeam(query string) (Team, bool) {
	for _, team := range Teams {
		if strings.Contains(query, team.Key) {
			return team, true
		}
	}
	return Team{}, false
}

func teamNames() string {
	names := make([]string, 0, len(Teams))
	for _, team := range Teams {
		names = append(names, team.Name)
	}
	return strings.Join(names, ", ")
}

// seasonFor returns the starting year of the season in progress; seasons start in July.
func seasonFor(now time.Time) int {
	if now.Month() >= time.July {
		return now.Year()
	}
	return now.Year() - 1
}

func matchDate(value string) string {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	if loc, err := time.LoadLocation(timezone); err == nil {
		parsed = parsed.In(loc)
	}
	return tools.TurkishDate(parsed)
}

func goals(value gjson.Result) string {
	if !value.Exists() || value.Type == gjson.Null {
		return "-"
	}
	return value.String()
}
