// Package wikipedia fetches page summaries from the Turkish Wikipedia REST API.
package wikipedia

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"zeta/pkg/config"
	"zeta/pkg/tools"
)

const (
	Name      = "wikipedia"
	userAgent = "ZetaAI/1.0"
)

var (
	triggerPhrases = regexp.MustCompile(`(?i)nedir|kimdir|ne demek|hakkında|bilgi ver|ne dir|kim dir`)
	punctuation    = regexp.MustCompile(`[?!.,]`)
)

// Summary is the data payload of a successful lookup.
type Summary struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	URL         string `json:"url,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Description string `json:"description,omitempty"`
}

// Tool implements tools.Tool for encyclopedia lookups.
type Tool struct {
	baseURL string
	client  *http.Client
}

// New creates the wikipedia capability.
func New(cfg config.EndpointConfig) *Tool {
	return &Tool{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  tools.NewHTTPClient(cfg.TimeoutSeconds),
	}
}

func (t *Tool) Name() string { return Name }

func (t *Tool) Description() string {
	return "Wikipedia'dan bilgi getirir"
}

func (t *Tool) Execute(ctx context.Context, params tools.Params) (tools.Result, error) {
	query := params.String("query")
	term := CleanQuery(query)
	if utf8.RuneCountInString(term) < 2 {
		return tools.Fail("Arama terimi çok kısa"), nil
	}

	body, err := tools.Fetch(ctx, t.client, t.baseURL, "/page/summary/"+url.PathEscape(term), nil, map[string]string{
		"User-Agent": userAgent,
	})
	if err != nil {
		var httpErr *tools.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return tools.Fail("%q için Wikipedia sayfası bulunamadı.", query), nil
		}
		return tools.Fail("Wikipedia sorgusu başarısız oldu."), nil
	}

	doc := gjson.ParseBytes(body)
	thumbnail := doc.Get("thumbnail.source").String()
	if thumbnail == "" {
		thumbnail = doc.Get("originalimage.source").String()
	}

	return tools.OK(Summary{
		Title:       doc.Get("title").String(),
		Extract:     doc.Get("extract").String(),
		URL:         doc.Get("content_urls.desktop.page").String(),
		Thumbnail:   thumbnail,
		Description: doc.Get("description").String(),
	}), nil
}

// CleanQuery strips question phrases and punctuation from a lookup term.
func CleanQuery(query string) string {
	stripped := triggerPhrases.ReplaceAllString(query, "")
	stripped = punctuation.ReplaceAllString(stripped, "")
	return strings.Join(strings.Fields(stripped), " ")
}
