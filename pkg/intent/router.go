// Package intent decides, from message text alone, whether a capability should answer a message.
//
// Rules are evaluated in order and the first match wins. Narrow domain vocabulary (weather, sports,
// encyclopedia phrasing) comes before broad catch-alls (web search keywords, handles, arithmetic),
// so "İzmir hava durumu 2+2" resolves to weather rather than the calculator.
package intent

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"zeta/pkg/tools"
)

const DefaultCity = "Istanbul"

// Capability names the router can select.
const (
	Weather    = "weather"
	Football   = "apiFootball"
	Wikipedia  = "wikipedia"
	WebSearch  = "webSearch"
	Instagram  = "instagram"
	Calculator = "calculator"
)

// Decision is the router verdict for one message.
type Decision struct {
	UseTool  bool         `json:"useTool"`
	ToolName string       `json:"toolName,omitempty"`
	Params   tools.Params `json:"params,omitempty"`
	Rule     string       `json:"-"`
}

// Rule is one ordered predicate/extractor pair.
type Rule struct {
	Name  string
	Match func(msg Message) (Decision, bool)
}

// Message carries the raw text and its Turkish-aware lower-case form.
type Message struct {
	Raw   string
	Lower string
}

// Router evaluates rules in order.
type Router struct {
	rules []Rule
}

// NewRouter returns a router with the default rule set, or with rules when given.
func NewRouter(rules ...Rule) *Router {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Router{rules: rules}
}

// Rules returns rule names in evaluation order.
func (r *Router) Rules() []string {
	names := make([]string, 0, len(r.rules))
	for _, rule := range r.rules {
		names = append(names, rule.Name)
	}
	return names
}

// Decide returns the first matching rule's decision, or a no-tool decision.
func (r *Router) Decide(text string) Decision {
	msg := Message{Raw: text, Lower: lower(text)}
	for _, rule := range r.rules {
		if decision, ok := rule.Match(msg); ok {
			decision.UseTool = true
			decision.Rule = rule.Name
			return decision
		}
	}
	return Decision{}
}

// lower builds a fresh Caser per call; a Caser keeps state and is not safe to share.
func lower(text string) string {
	return cases.Lower(language.Turkish).String(text)
}

// DefaultRules returns the production rule order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: Weather, Match: matchWeather},
		{Name: "sports", Match: matchSports},
		{Name: Wikipedia, Match: matchWikipedia},
		{Name: WebSearch, Match: matchWebSearch},
		{Name: Instagram, Match: matchInstagram},
		{Name: Calculator, Match: matchCalculator},
	}
}

var (
	leadingCityWeather = regexp.MustCompile(`(?i)^(?:istanbul|İstanbul|ankara|izmir|İzmir|bursa|antalya)\s*(?:hava|weather)`)
	cityPatterns       = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(.+?)\s+(?:hava durumu|weather)`),
		regexp.MustCompile(`(?i)(?:hava durumu|weather)\s+(.+)`),
	}
)

func matchWeather(msg Message) (Decision, bool) {
	l := msg.Lower
	hit := strings.Contains(l, "hava durumu") || strings.Contains(l, "weather") ||
		(strings.Contains(l, "sıcaklık") && !strings.Contains(l, "öğren")) ||
		(strings.Contains(l, "derece") && (strings.Contains(l, "bugün") || strings.Contains(l, "yarın"))) ||
		leadingCityWeather.MatchString(msg.Raw)
	if !hit {
		return Decision{}, false
	}
	return Decision{ToolName: Weather, Params: tools.Params{"city": ExtractCity(msg.Raw)}}, true
}

// ExtractCity returns the first non-empty capture of the city patterns, or DefaultCity.
// Turkish case suffixes after an apostrophe ("Ankara'da") are dropped.
func ExtractCity(text string) string {
	for _, pattern := range cityPatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		city := match[1]
		if i := strings.IndexAny(city, "'’"); i > 0 {
			city = city[:i]
		}
		city = strings.Trim(city, " \t\n?!.,")
		if city != "" {
			return city
		}
	}
	return DefaultCity
}

var sportsKeywords = []string{
	"galatasaray", "fenerbahçe", "beşiktaş", "trabzonspor", "başakşehir",
	"süper lig", "puan durumu", "puan tablosu", "sıralama",
	"maç", "gol", "skor", "futbol", "son maç",
}

func matchSports(msg Message) (Decision, bool) {
	if !containsAny(msg.Lower, sportsKeywords) {
		return Decision{}, false
	}
	return Decision{ToolName: Football, Params: tools.Params{"query": msg.Raw}}, true
}

var (
	wikiTriggers = []*regexp.Regexp{
		regexp.MustCompile(`(?i)nedir[?!.\s]*$`),
		regexp.MustCompile(`(?i)kimdir[?!.\s]*$`),
		regexp.MustCompile(`(?i)ne demek[?!.\s]*$`),
		regexp.MustCompile(`(?i)hakkında`),
	}
	wikiPhrases = regexp.MustCompile(`(?i)nedir|kimdir|ne demek|hakkında|bilgi ver`)
)

func matchWikipedia(msg Message) (Decision, bool) {
	triggered := false
	for _, trigger := range wikiTriggers {
		if trigger.MatchString(msg.Raw) {
			triggered = true
			break
		}
	}
	if !triggered {
		return Decision{}, false
	}

	term := strings.Trim(wikiPhrases.ReplaceAllString(msg.Raw, ""), " \t\n?!.,")
	if len([]rune(term)) <= 2 {
		return Decision{}, false
	}
	return Decision{ToolName: Wikipedia, Params: tools.Params{"query": term}}, true
}

var searchKeywords = []string{"ara", "search", "güncel", "son dakika", "şu an", "haber", "dolar", "euro", "döviz", "kur"}

func matchWebSearch(msg Message) (Decision, bool) {
	if !containsAny(msg.Lower, searchKeywords) {
		return Decision{}, false
	}
	return Decision{ToolName: WebSearch, Params: tools.Params{"query": msg.Raw}}, true
}

var instagramPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)instagram\.com/`),
	regexp.MustCompile(`(?i)instagram.*analiz`),
	regexp.MustCompile(`(?i)instagram.*profil`),
	regexp.MustCompile(`(?i)@[a-z0-9_.]+`),
}

func matchInstagram(msg Message) (Decision, bool) {
	for _, pattern := range instagramPatterns {
		if pattern.MatchString(msg.Raw) {
			return Decision{ToolName: Instagram, Params: tools.Params{"query": handle(msg.Raw)}}, true
		}
	}
	return Decision{}, false
}

var handlePattern = regexp.MustCompile(`(?i)(?:instagram\.com/[^\s/?#]+|@[a-z0-9_.]+)`)

// handle narrows a sentence to the profile link or @handle it mentions.
func handle(text string) string {
	if found := handlePattern.FindString(text); found != "" {
		return found
	}
	return text
}

var arithmetic = regexp.MustCompile(`(\d+)\s*[+\-*/x÷]\s*(\d+)`)

func matchCalculator(msg Message) (Decision, bool) {
	if !arithmetic.MatchString(msg.Raw) {
		return Decision{}, false
	}
	return Decision{ToolName: Calculator, Params: tools.Params{"expression": msg.Raw}}, true
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
