package runtime

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"zeta/pkg/bus"
	"zeta/pkg/orchestrator"
	providertypes "zeta/pkg/provider/types"
	"zeta/pkg/safety"
	"zeta/pkg/tools"
)

const (
	UsageInputTokensKey       = "usage_input_tokens"
	UsageOutputTokensKey      = "usage_output_tokens"
	UsageTotalTokensKey       = "usage_total_tokens"
	UsageReasoningTokensKey   = "usage_reasoning_tokens"
	UsageCacheCreateTokensKey = "usage_cache_creation_tokens"
	UsageCacheReadTokensKey   = "usage_cache_read_tokens"
	ToolEventsJSONKey         = "tool_events_json"
	RetryAfterMsKey           = "retry_after_ms"
)

// PromptResult is an outcome as seen by a bus consumer, plus the capability events it produced.
type PromptResult struct {
	Outcome    orchestrator.Outcome
	ToolEvents []tools.Event
}

// OutcomeMetadata serializes the outcome fields that survive the bus into outbound metadata.
//
// CLI and gateway both read replies through OutcomeFromOutbound, so the key set lives here.
func OutcomeMetadata(out orchestrator.Outcome, events []tools.Event) map[string]string {
	metadata := map[string]string{bus.MetadataOutcome: string(out.Kind)}
	if out.ToolUsed != "" {
		metadata[bus.MetadataToolUsed] = out.ToolUsed
	}
	if out.Reason != "" {
		metadata[bus.MetadataReason] = string(out.Reason)
	}
	if out.RetryAfter > 0 {
		metadata[RetryAfterMsKey] = strconv.FormatInt(out.RetryAfter.Milliseconds(), 10)
	}
	if out.Degraded {
		metadata[bus.MetadataDegraded] = "true"
	}
	if out.Usage != nil {
		usage := out.Usage
		metadata[UsageInputTokensKey] = strconv.FormatInt(usage.InputTokens, 10)
		metadata[UsageOutputTokensKey] = strconv.FormatInt(usage.OutputTokens, 10)
		metadata[UsageTotalTokensKey] = strconv.FormatInt(usage.TotalTokens, 10)
		metadata[UsageReasoningTokensKey] = strconv.FormatInt(usage.ReasoningTokens, 10)
		metadata[UsageCacheCreateTokensKey] = strconv.FormatInt(usage.CacheCreationTokens, 10)
		metadata[UsageCacheReadTokensKey] = strconv.FormatInt(usage.CacheReadTokens, 10)
	}
	if len(events) > 0 {
		payload, err := json.Marshal(events)
		if err == nil {
			metadata[ToolEventsJSONKey] = string(payload)
		}
	}
	return metadata
}

// OutcomeFromOutbound reconstructs the outcome carried by an outbound reply.
func OutcomeFromOutbound(outbound bus.OutboundMessage) PromptResult {
	out := orchestrator.Outcome{Kind: orchestrator.KindSuccess, Message: outbound.Content}
	if outbound.Metadata == nil {
		return PromptResult{Outcome: out}
	}

	md := outbound.Metadata
	if kind := strings.TrimSpace(md[bus.MetadataOutcome]); kind != "" {
		out.Kind = orchestrator.Kind(kind)
	}
	out.ToolUsed = md[bus.MetadataToolUsed]
	out.Reason = safety.Reason(md[bus.MetadataReason])
	out.Degraded = md[bus.MetadataDegraded] == "true"
	if ms := parseInt64(md[RetryAfterMsKey]); ms > 0 {
		out.RetryAfter = time.Duration(ms) * time.Millisecond
	}

	usage := &providertypes.TokenUsage{
		InputTokens:         parseInt64(md[UsageInputTokensKey]),
		OutputTokens:        parseInt64(md[UsageOutputTokensKey]),
		TotalTokens:         parseInt64(md[UsageTotalTokensKey]),
		ReasoningTokens:     parseInt64(md[UsageReasoningTokensKey]),
		CacheCreationTokens: parseInt64(md[UsageCacheCreateTokensKey]),
		CacheReadTokens:     parseInt64(md[UsageCacheReadTokensKey]),
	}
	if !usage.IsZero() {
		out.Usage = usage
	}

	result := PromptResult{Outcome: out}
	if raw, ok := md[ToolEventsJSONKey]; ok {
		result.ToolEvents = parseToolEvents(raw)
	}
	return result
}

func parseToolEvents(raw string) []tools.Event {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	var events []tools.Event
	if err := json.Unmarshal([]byte(trimmed), &events); err != nil {
		return nil
	}

	if len(events) == 0 {
		return nil
	}

	return events
}

func parseInt64(value string) int64 {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}

	return parsed
}
