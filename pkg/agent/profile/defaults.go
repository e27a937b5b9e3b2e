package profile

import "strings"

const (
	providerOpenCode = "opencode"
)

// defaultTemplateName picks the persona template for a provider. OpenCode servers
// ship their own agent prompt, so Zeta sends a compact persona there instead.
func defaultTemplateName(provider string) string {
	if strings.EqualFold(strings.TrimSpace(provider), providerOpenCode) {
		return compactProfileName
	}

	return defaultProfileName
}
