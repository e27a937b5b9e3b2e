// Package websearch runs Google searches through SerpAPI and condenses the result blocks.
package websearch

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"zeta/pkg/config"
	"zeta/pkg/tools"
)

const Name = "webSearch"

// Search types accepted in the "type" parameter.
const (
	TypeAll    = "all"
	TypeImages = "images"
	TypeNews   = "news"
	TypeVideos = "videos"
)

// Organic is one regular search hit.
type Organic struct {
	Position    int    `json:"position"`
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
	URL         string `json:"url"`
	DisplayLink string `json:"displayLink,omitempty"`
	Date        string `json:"date,omitempty"`
}

// AnswerBox is Google's direct answer block.
type AnswerBox struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title,omitempty"`
	Answer string `json:"answer,omitempty"`
	Link   string `json:"link,omitempty"`
	Source string `json:"source,omitempty"`
}

// KnowledgeGraph is the entity panel.
type KnowledgeGraph struct {
	Title       string            `json:"title"`
	Type        string            `json:"type,omitempty"`
	Description string            `json:"description,omitempty"`
	Image       string            `json:"image,omitempty"`
	Source      string            `json:"source,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Article is a news hit.
type Article struct {
	Title     string `json:"title"`
	Snippet   string `json:"snippet,omitempty"`
	Source    string `json:"source,omitempty"`
	Date      string `json:"date,omitempty"`
	Link      string `json:"link"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Image is an image hit.
type Image struct {
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Original  string `json:"original,omitempty"`
	Source    string `json:"source,omitempty"`
	Link      string `json:"link,omitempty"`
}

// Video is a video hit.
type Video struct {
	Title     string `json:"title"`
	Channel   string `json:"channel,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Date      string `json:"date,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Link      string `json:"link"`
}

// Related is a suggested follow-up query.
type Related struct {
	Query string `json:"query"`
	Link  string `json:"link,omitempty"`
}

// Results is the data payload of a successful search.
type Results struct {
	Query           string          `json:"query"`
	Type            string          `json:"type"`
	Organic         []Organic       `json:"organic"`
	AnswerBox       *AnswerBox      `json:"answerBox,omitempty"`
	KnowledgeGraph  *KnowledgeGraph `json:"knowledgeGraph,omitempty"`
	News            []Article       `json:"news,omitempty"`
	Images          []Image         `json:"images,omitempty"`
	Videos          []Video         `json:"videos,omitempty"`
	RelatedSearches []Related       `json:"relatedSearches,omitempty"`
}

func (r Results) empty() bool {
	return len(r.Organic) == 0 && r.AnswerBox == nil && r.KnowledgeGraph == nil &&
		len(r.News) == 0 && len(r.Images) == 0 && len(r.Videos) == 0
}

// Tool implements tools.Tool for web search.
type Tool struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates the web search capability.
func New(cfg config.EndpointConfig) *Tool {
	return &Tool{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  tools.NewHTTPClient(cfg.TimeoutSeconds),
	}
}

func (t *Tool) Name() string { return Name }

func (t *Tool) Description() string {
	return "Gelişmiş web araması (resim, haber, video, bilgi kutusu)"
}

func (t *Tool) Execute(ctx context.Context, params tools.Params) (tools.Result, error) {
	if t.apiKey == "" {
		return tools.Fail("SERP_API_KEY tanımlı değil"), nil
	}

	query := params.String("query")
	if query == "" {
		return tools.Fail("Arama sorgusu boş"), nil
	}
	searchType := params.String("type")
	if searchType == "" {
		searchType = TypeAll
	}

	values := url.Values{}
	values.Set("q", query)
	values.Set("api_key", t.apiKey)
	values.Set("engine", "google")
	values.Set("hl", "tr")
	values.Set("gl", "tr")
	values.Set("num", "10")
	switch searchType {
	case TypeImages:
		values.Set("tbm", "isch")
		values.Set("num", "20")
	case TypeNews:
		values.Set("tbm", "nws")
	case TypeVideos:
		values.Set("tbm", "vid")
	}

	body, err := tools.Fetch(ctx, t.client, t.baseURL, "/search", values, nil)
	if err != nil {
		var httpErr *tools.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
			return tools.Fail("API limiti aşıldı. Lütfen birkaç saniye bekleyin."), nil
		}
		return tools.Fail("Arama yapılamadı: %v", err), nil
	}

	results := parseResults(body, query, searchType)
	if results.empty() {
		return tools.Fail("Sonuç bulunamadı"), nil
	}
	return tools.OK(results), nil
}

func parseResults(body []byte, query string, searchType string) Results {
	doc := gjson.ParseBytes(body)
	results := Results{Query: query, Type: searchType, Organic: []Organic{}}

	doc.Get("organic_results").ForEach(func(_, item gjson.Result) bool {
		results.Organic = append(results.Organic, Organic{
			Position:    int(item.Get("position").Int()),
			Title:       item.Get("title").String(),
			Snippet:     firstNonEmpty(item.Get("snippet").String(), item.Get("description").String()),
			URL:         item.Get("link").String(),
			DisplayLink: item.Get("displayed_link").String(),
			Date:        item.Get("date").String(),
		})
		return true
	})

	if box := doc.Get("answer_box"); box.Exists() {
		results.AnswerBox = &AnswerBox{
			Type:   box.Get("type").String(),
			Title:  box.Get("title").String(),
			Answer: firstNonEmpty(box.Get("answer").String(), box.Get("snippet").String()),
			Link:   box.Get("link").String(),
			Source: box.Get("source").String(),
		}
	}

	if kg := doc.Get("knowledge_graph"); kg.Exists() {
		graph := &KnowledgeGraph{
			Title:       kg.Get("title").String(),
			Type:        kg.Get("type").String(),
			Description: kg.Get("description").String(),
			Image:       firstNonEmpty(kg.Get("image").String(), kg.Get("thumbnail").String()),
			Source:      kg.Get("source.name").String(),
		}
		kg.Get("attributes").ForEach(func(key, value gjson.Result) bool {
			if graph.Attributes == nil {
				graph.Attributes = map[string]string{}
			}
			graph.Attributes[key.String()] = value.String()
			return true
		})
		results.KnowledgeGraph = graph
	}

	each(doc.Get("news_results"), 5, func(item gjson.Result) {
		results.News = append(results.News, Article{
			Title:     item.Get("title").String(),
			Snippet:   firstNonEmpty(item.Get("snippet").String(), item.Get("description").String()),
			Source:    sourceName(item.Get("source")),
			Date:      item.Get("date").String(),
			Link:      item.Get("link").String(),
			Thumbnail: item.Get("thumbnail").String(),
		})
	})

	each(doc.Get("images_results"), 6, func(item gjson.Result) {
		results.Images = append(results.Images, Image{
			Title:     firstNonEmpty(item.Get("title").String(), "Resim"),
			Thumbnail: item.Get("thumbnail").String(),
			Original:  item.Get("original").String(),
			Source:    sourceName(item.Get("source")),
			Link:      item.Get("link").String(),
		})
	})

	each(doc.Get("video_results"), 4, func(item gjson.Result) {
		results.Videos = append(results.Videos, Video{
			Title:     item.Get("title").String(),
			Channel:   firstNonEmpty(sourceName(item.Get("channel")), sourceName(item.Get("source"))),
			Duration:  item.Get("duration").String(),
			Date:      item.Get("date").String(),
			Thumbnail: item.Get("thumbnail").String(),
			Link:      item.Get("link").String(),
		})
	})

	each(doc.Get("related_searches"), 5, func(item gjson.Result) {
		results.RelatedSearches = append(results.RelatedSearches, Related{
			Query: item.Get("query").String(),
			Link:  item.Get("link").String(),
		})
	})

	return results
}

// Summary renders results as compact text for a model prompt.
func Summary(r Results) string {
	var b strings.Builder
	if r.AnswerBox != nil && r.AnswerBox.Answer != "" {
		b.WriteString("Hızlı yanıt: " + r.AnswerBox.Answer + "\n")
	}
	if r.KnowledgeGraph != nil {
		b.WriteString("Bilgi kutusu: " + r.KnowledgeGraph.Title)
		if r.KnowledgeGraph.Description != "" {
			b.WriteString(" - " + r.KnowledgeGraph.Description)
		}
		b.WriteString("\n")
	}
	for i, item := range r.Organic {
		if i == 5 {
			break
		}
		b.WriteString(strconv.Itoa(i+1) + ". " + item.Title + ": " + item.Snippet + " (" + item.URL + ")\n")
	}
	for _, article := range r.News {
		b.WriteString("Haber: " + article.Title + " - " + article.Source + "\n")
	}
	return strings.TrimSpace(b.String())
}

// sourceName accepts either a plain string or an object with a name field.
func sourceName(value gjson.Result) string {
	if value.IsObject() {
		return value.Get("name").String()
	}
	return value.String()
}

func each(list gjson.Result, limit int, fn func(gjson.Result)) {
	count := 0
	list.ForEach(func(_, item gjson.Result) bool {
		fn(item)
		count++
		return count < limit
	})
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
