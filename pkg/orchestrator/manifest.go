package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"zeta/pkg/tools"
	"zeta/pkg/tools/npm"
)

const manifestTool = npm.Name

var fencedBlock = regexp.MustCompile("(?is)```(?:json|javascript)?\\s*(.*?)```")

// ManifestReport is the tool data attached to a package.json analysis reply.
type ManifestReport struct {
	Stats   npm.Stats   `json:"stats"`
	Results []npm.Check `json:"results"`
}

// ExtractManifest finds a package.json object in text. A fenced code block is searched first,
// then the whole text; the first balanced object declaring dependencies or devDependencies wins.
func ExtractManifest(text string) (string, bool) {
	if match := fencedBlock.FindStringSubmatch(text); match != nil {
		if manifest, ok := scanManifest(match[1]); ok {
			return manifest, true
		}
	}
	return scanManifest(text)
}

func scanManifest(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start != -1; {
		if candidate, ok := balancedObject(text, start); ok && isManifest(candidate) {
			return candidate, true
		}

		next := strings.IndexByte(text[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", false
}

func balancedObject(text string, start int) (string, bool) {
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func isManifest(candidate string) bool {
	if !gjson.Valid(candidate) {
		return false
	}
	parsed := gjson.Parse(candidate)
	if !parsed.IsObject() {
		return false
	}
	return truthy(parsed.Get("dependencies")) || truthy(parsed.Get("devDependencies"))
}

func truthy(value gjson.Result) bool {
	switch value.Type {
	case gjson.True, gjson.JSON:
		return true
	case gjson.Number:
		return value.Num != 0
	case gjson.String:
		return value.Str != ""
	default:
		return false
	}
}

func (o *Orchestrator) analyzeManifest(ctx context.Context, req Request, manifest string) Outcome {
	result := o.tools.Execute(ctx, manifestTool, tools.Params{"content": manifest})
	if !result.Success {
		o.log.WarnContext(ctx, "package.json analysis failed", "request_id", req.RequestID, "error", result.Error)
		return Outcome{Kind: KindSuccess, Message: "❌ package.json analiz edilemedi: " + result.Error}
	}

	analysis, ok := result.Data.(npm.Analysis)
	if !ok {
		return Outcome{Kind: KindSuccess, Message: fmt.Sprintf("❌ Paket analizi sırasında hata: beklenmeyen sonuç %T", result.Data)}
	}

	return Outcome{
		Kind:     KindSuccess,
		Message:  ManifestReply(analysis),
		ToolUsed: manifestTool,
		ToolData: ManifestReport{Stats: analysis.Stats, Results: analysis.Results},
	}
}

// ManifestReply renders the verdict line and, when anything needs fixing, the corrected manifest.
func ManifestReply(analysis npm.Analysis) string {
	stats := analysis.Stats
	if stats.Critical == 0 && stats.Outdated == 0 {
		return fmt.Sprintf("✅ package.json temiz, %d paket sorunsuz.", stats.OK)
	}

	reply := fmt.Sprintf("⚠️ %d kritik hata, %d eski paket bulundu.", stats.Critical, stats.Outdated)
	if len(analysis.FixedManifest) == 0 {
		return reply
	}

	fixed, err := marshalIndent(analysis.FixedManifest)
	if err != nil {
		return reply
	}
	return reply + "\n\n**✅ Düzeltilmiş package.json:**\n```json\n" + fixed + "\n```"
}

func marshalIndent(value any) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
