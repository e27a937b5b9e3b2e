package profile

import (
	"embed"
	"fmt"
	"os"
	"strings"
)

const (
	defaultProfileName = "default"
	compactProfileName = "compact"
)

//go:embed templates/*.md
var templatesFS embed.FS

// ResolveSystemProfile returns the persona prompt for provider. A non-empty overrideFile
// replaces the embedded template.
func ResolveSystemProfile(provider string, overrideFile string) (string, error) {
	if path := strings.TrimSpace(overrideFile); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read system prompt file: %w", err)
		}
		return nonEmpty(path, content)
	}

	templateName := defaultTemplateName(provider)
	content, err := templatesFS.ReadFile(templatePath(templateName))
	if err != nil {
		return "", fmt.Errorf("load %s profile template: %w", templateName, err)
	}

	return nonEmpty(templateName, content)
}

func nonEmpty(name string, content []byte) (string, error) {
	profile := strings.TrimSpace(string(content))
	if profile == "" {
		return "", fmt.Errorf("profile template %q is empty", name)
	}
	return profile, nil
}

func templatePath(templateName string) string {
	return "templates/" + strings.TrimSpace(templateName) + ".md"
}
