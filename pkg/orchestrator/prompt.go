package orchestrator

import (
	"fmt"
	"strings"

	"zeta/pkg/tools"
)

const toolPromptRules = `Yukarıdaki bilgiyi kullanarak kullanıcıya KISA, NET ve ANLAŞILIR bir yanıt ver.
KURALLAR:
- JSON formatını kullanıcıya gösterme
- Doğal dil ile yanıt ver
- Maksimum 3-4 cümle
- Bilgiyi özetle, aynen kopyalama`

// ToolPrompt builds the synthesis prompt that embeds a capability result for the model.
// The result data is used when present, the whole result otherwise.
func ToolPrompt(userMessage string, toolName string, result tools.Result) (string, error) {
	var payload any = result
	if result.Data != nil {
		payload = result.Data
	}

	data, err := marshalIndent(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s result: %w", toolName, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Kullanıcı sorusu: \"%s\"\n\n", userMessage)
	fmt.Fprintf(&b, "%s tool'undan gelen bilgi:\n%s\n\n", toolName, data)
	b.WriteString(toolPromptRules)
	return b.String(), nil
}
