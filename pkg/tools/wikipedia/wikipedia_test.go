package wikipedia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"zeta/pkg/config"
	"zeta/pkg/tools"
)

func TestExecuteSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/page/summary/Mustafa Kemal Atatürk" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(`{
		  "title": "Mustafa Kemal Atatürk",
		  "extract": "Türk mareşal ve devlet adamı.",
		  "description": "Türkiye Cumhuriyeti'nin kurucusu",
		  "content_urls": {"desktop": {"page": "https://tr.wikipedia.org/wiki/Mustafa_Kemal_Atat%C3%BCrk"}},
		  "originalimage": {"source": "https://upload.wikimedia.org/a.jpg"}
		}`))
	}))
	defer server.Close()

	tool := New(config.EndpointConfig{BaseURL: server.URL})
	result, err := tool.Execute(context.Background(), tools.Params{"query": "Mustafa Kemal Atatürk kimdir?"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}

	summary := result.Data.(Summary)
	if summary.Title != "Mustafa Kemal Atatürk" || summary.Thumbnail != "https://upload.wikimedia.org/a.jpg" {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.URL == "" || summary.Description == "" {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestExecuteNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result, err := New(config.EndpointConfig{BaseURL: server.URL}).Execute(context.Background(), tools.Params{"query": "xyzzy nedir"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if result.Success || result.Error != `"xyzzy nedir" için Wikipedia sayfası bulunamadı.` {
		t.Fatalf("result = %+v", result)
	}
}

func TestExecuteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	result, _ := New(config.EndpointConfig{BaseURL: server.URL}).Execute(context.Background(), tools.Params{"query": "Ankara"})
	if result.Success || result.Error != "Wikipedia sorgusu başarısız oldu." {
		t.Fatalf("result = %+v", result)
	}
}

func TestExecuteTermTooShort(t *testing.T) {
	result, _ := New(config.EndpointConfig{BaseURL: "http://127.0.0.1:0"}).Execute(context.Background(), tools.Params{"query": "a nedir?"})
	if result.Success || result.Error != "Arama terimi çok kısa" {
		t.Fatalf("result = %+v", result)
	}
}

func TestCleanQuery(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "Ankara nedir?", want: "Ankara"},
		{input: "Einstein Kimdir", want: "Einstein"},
		{input: "kuantum hakkında bilgi ver", want: "kuantum"},
		{input: "yapay zeka ne demek", want: "yapay zeka"},
	}
	for _, tc := range tests {
		if got := CleanQuery(tc.input); got != tc.want {
			t.Fatalf("CleanQuery(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
