// Package npm checks package.json dependencies against the npm registry.
package npm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/mod/semver"
	"golang.org/x/sync/errgroup"

	"zeta/pkg/config"
	"zeta/pkg/tools"
)

const (
	Name = "packageAnalyzer"

	maxConcurrentLookups = 5
	abbreviatedMetadata  = "application/vnd.npm.install-v1+json"
)

// ErrInvalidManifest reports a package.json that is not a JSON object.
var ErrInvalidManifest = errors.New("invalid package.json")

// Status classifies one dependency check.
type Status string

const (
	StatusOK              Status = "OK"
	StatusOutdated        Status = "OUTDATED"
	StatusVersionResolved Status = "VERSION_RESOLVED"
	StatusVersionNotFound Status = "VERSION_NOT_FOUND"
	StatusNotFound        Status = "NOT_FOUND"
	StatusError           Status = "ERROR"
)

// Check is the registry verdict for one dependency.
type Check struct {
	Name           string `json:"name"`
	Requested      string `json:"requested"`
	RequestedClean string `json:"requestedClean,omitempty"`
	Latest         string `json:"latest,omitempty"`
	ExactExists    bool   `json:"exactExists"`
	Compatible     string `json:"compatible,omitempty"`
	Status         Status `json:"status"`
	Error          string `json:"error,omitempty"`
}

// Stats counts checks per status.
type Stats struct {
	Total     int `json:"total"`
	Critical  int `json:"critical"`
	Warnings  int `json:"warnings"`
	Outdated  int `json:"outdated"`
	NotFound  int `json:"notFound"`
	OK        int `json:"ok"`
	Unchecked int `json:"unchecked,omitempty"`
}

// Analysis is the data payload returned for a package.json.
type Analysis struct {
	Results       []Check        `json:"results"`
	Stats         Stats          `json:"stats"`
	Summary       string         `json:"summary"`
	FixedManifest map[string]any `json:"fixedPackageJson,omitempty"`
}

// Tool implements tools.Tool for dependency analysis.
type Tool struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// New creates the package analyzer capability.
func New(cfg config.EndpointConfig) *Tool {
	return &Tool{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  tools.NewHTTPClient(cfg.TimeoutSeconds),
		logger:  slog.Default().With("component", "tools.npm"),
	}
}

func (t *Tool) Name() string { return Name }

func (t *Tool) Description() string {
	return "package.json bağımlılıklarını npm kayıt defterine göre kontrol eder"
}

func (t *Tool) Execute(ctx context.Context, params tools.Params) (tools.Result, error) {
	analysis, err := t.Analyze(ctx, params.String("content"))
	if errors.Is(err, ErrInvalidManifest) {
		return tools.Fail("Geçersiz JSON formatı"), nil
	}
	if err != nil {
		return tools.Result{}, err
	}
	return tools.OK(analysis), nil
}

// Analyze checks every dependency and devDependency of manifest in declaration order.
func (t *Tool) Analyze(ctx context.Context, manifest string) (Analysis, error) {
	if !gjson.Valid(manifest) || !gjson.Parse(manifest).IsObject() {
		return Analysis{}, ErrInvalidManifest
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(manifest), &parsed); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	deps := dependencies(manifest)
	if len(deps) == 0 {
		return Analysis{Results: []Check{}, Summary: "Bağımlılık bulunamadı."}, nil
	}

	t.logger.Info("Checking packages", "count", len(deps))

	results := make([]Check, len(deps))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentLookups)
	for i, dep := range deps {
		group.Go(func() error {
			results[i] = t.check(groupCtx, dep.name, dep.version)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Analysis{}, err
	}

	analysis := Analysis{
		Results:       results,
		Stats:         countStats(results),
		FixedManifest: fixManifest(parsed, results),
	}
	analysis.Summary = Summarize(results)

	return analysis, nil
}

type dependency struct {
	name    string
	version string
}

// dependencies merges dependencies and devDependencies; a dev entry overrides a runtime one.
func dependencies(manifest string) []dependency {
	var deps []dependency
	index := map[string]int{}
	for _, section := range []string{"dependencies", "devDependencies"} {
		gjson.Get(manifest, section).ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			if i, ok := index[name]; ok {
				deps[i].version = value.String()
				return true
			}
			index[name] = len(deps)
			deps = append(deps, dependency{name: name, version: value.String()})
			return true
		})
	}
	return deps
}

func (t *Tool) check(ctx context.Context, name string, requested string) Check {
	body, err := tools.Fetch(ctx, t.client, t.baseURL, "/"+url.PathEscape(name), nil,
		map[string]string{"Accept": abbreviatedMetadata})
	if err != nil {
		var httpErr *tools.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return Check{Name: name, Requested: requested, Status: StatusNotFound, Error: "Paket bulunamadı"}
		}
		return Check{Name: name, Requested: requested, Status: StatusError, Error: err.Error()}
	}

	var versions []string
	gjson.GetBytes(body, "versions").ForEach(func(key, _ gjson.Result) bool {
		versions = append(versions, key.String())
		return true
	})

	latest := gjson.GetBytes(body, "dist-tags.latest").String()
	cleaned := CleanRange(requested)
	exact := slices.Contains(versions, cleaned)
	compatible := Compatible(versions, requested, cleaned)

	return Check{
		Name:           name,
		Requested:      requested,
		RequestedClean: cleaned,
		Latest:         latest,
		ExactExists:    exact,
		Compatible:     compatible,
		Status:         classify(exact, compatible, cleaned, latest),
	}
}

// CleanRange strips range operators from a version requirement.
func CleanRange(requested string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if strings.ContainsRune("^~>=<", r) {
			return -1
		}
		return r
	}, requested))
}

// Compatible returns the highest stable version satisfying requested, or "".
// A caret range pins the major version and a tilde range pins major.minor.
func Compatible(versions []string, requested string, cleaned string) string {
	want := canonical(cleaned)
	var pin func(v string) string
	switch {
	case strings.HasPrefix(requested, "^"):
		pin = semver.Major
	case strings.HasPrefix(requested, "~"):
		pin = semver.MajorMinor
	default:
		if slices.Contains(versions, cleaned) && semver.IsValid(want) && semver.Prerelease(want) == "" {
			return cleaned
		}
		return ""
	}
	if !semver.IsValid(want) {
		return ""
	}

	best, bestCanonical := "", ""
	for _, candidate := range versions {
		v := canonical(candidate)
		if !semver.IsValid(v) || semver.Prerelease(v) != "" || pin(v) != pin(want) {
			continue
		}
		if best == "" || semver.Compare(v, bestCanonical) > 0 {
			best, bestCanonical = candidate, v
		}
	}
	return best
}

// canonical prefixes an npm version with the "v" the semver package expects.
func canonical(version string) string {
	return "v" + strings.TrimPrefix(strings.TrimSpace(version), "v")
}

func classify(exact bool, compatible string, cleaned string, latest string) Status {
	switch {
	case !exact && compatible == "":
		return StatusVersionNotFound
	case !exact:
		return StatusVersionResolved
	case cleaned != latest:
		return StatusOutdated
	default:
		return StatusOK
	}
}

func countStats(results []Check) Stats {
	stats := Stats{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusVersionNotFound:
			stats.Critical++
		case StatusVersionResolved:
			stats.Warnings++
		case StatusOutdated:
			stats.Outdated++
		case StatusNotFound:
			stats.NotFound++
		case StatusOK:
			stats.OK++
		default:
			stats.Unchecked++
		}
	}
	return stats
}

// fixManifest rewrites missing versions to the nearest compatible release, keeping the range prefix.
func fixManifest(original map[string]any, results []Check) map[string]any {
	fixed := make(map[string]any, len(original))
	for key, value := range original {
		fixed[key] = value
	}

	for _, section := range []string{"dependencies", "devDependencies"} {
		deps, ok := original[section].(map[string]any)
		if !ok {
			continue
		}
		copied := make(map[string]any, len(deps))
		for name, version := range deps {
			copied[name] = version
		}
		for _, r := range results {
			if r.Status != StatusVersionNotFound || r.Compatible == "" {
				continue
			}
			if _, ok := copied[r.Name]; ok {
				copied[r.Name] = rangePrefix(r.Requested) + r.Compatible
			}
		}
		fixed[section] = copied
	}
	return fixed
}

func rangePrefix(requested string) string {
	switch {
	case strings.HasPrefix(requested, "^"):
		return "^"
	case strings.HasPrefix(requested, "~"):
		return "~"
	default:
		return ""
	}
}

// Summarize renders a Markdown report grouped by severity.
func Summarize(results []Check) string {
	group := func(status Status) []Check {
		var out []Check
		for _, r := range results {
			if r.Status == status {
				out = append(out, r)
			}
		}
		return out
	}
	critical := group(StatusVersionNotFound)
	notFound := group(StatusNotFound)
	outdated := group(StatusOutdated)
	warnings := group(StatusVersionResolved)
	ok := group(StatusOK)

	lines := []string{fmt.Sprintf("📦 **%d paket analiz edildi**\n", len(results))}

	if len(critical) > 0 {
		lines = append(lines, fmt.Sprintf("🔴 **Kritik Hatalar (%d)**: npm install çalışmaz:\n", len(critical)))
		for _, r := range critical {
			lines = append(lines, fmt.Sprintf("  • `%s@%s` → Bu versiyon **mevcut değil**!", r.Name, r.Requested))
			if r.Compatible != "" {
				lines = append(lines, fmt.Sprintf("    ✅ Önerilen: `%s@^%s`", r.Name, r.Compatible))
			}
		}
		lines = append(lines, "")
	}
	if len(notFound) > 0 {
		lines = append(lines, fmt.Sprintf("❌ **Bulunamayan Paketler (%d)**:\n", len(notFound)))
		for _, r := range notFound {
			lines = append(lines, fmt.Sprintf("  • `%s`: npm'de kayıtlı değil", r.Name))
		}
		lines = append(lines, "")
	}
	if len(outdated) > 0 {
		lines = append(lines, fmt.Sprintf("🟠 **Güncel Olmayan Paketler (%d)**:\n", len(outdated)))
		for _, r := range outdated {
			lines = append(lines, fmt.Sprintf("  • `%s@%s` → Son sürüm: `%s`", r.Name, r.RequestedClean, r.Latest))
		}
		lines = append(lines, "")
	}
	if len(warnings) > 0 {
		lines = append(lines, fmt.Sprintf("🟡 **Uyarılar (%d)**:\n", len(warnings)))
		for _, r := range warnings {
			lines = append(lines, fmt.Sprintf("  • `%s@%s` → npm `%s` kullanacak", r.Name, r.Requested, r.Compatible))
		}
		lines = append(lines, "")
	}
	if len(ok) > 0 && len(critical) == 0 {
		lines = append(lines, fmt.Sprintf("✅ **%d paket sorunsuz**", len(ok)))
	}

	return strings.Join(lines, "\n")
}
