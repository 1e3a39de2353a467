package patch

import (
	"bytes"
	"fmt"
	"text/template"
)

// renderTemplate substitutes template variables into content. A variable
// referenced by the template but absent from vars is a validation error.
func renderTemplate(content string, vars map[string]string) (string, error) {
	tmpl, err := template.New("patch").Option("missingkey=error").Parse(content)
	if err != nil {
		return "", fmt.Errorf("malformed template: %w", err)
	}

	data := make(map[string]string, len(vars))
	for k, v := range vars {
		data[k] = v
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template rendering failed: %w", err)
	}
	return buf.String(), nil
}

// deepMerge merges changes into base recursively. Nested maps are merged
// key by key; any other value in changes replaces the base value.
func deepMerge(base, changes map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base))
	for k, v := range base {
		out[k] = v
	}

	for k, change := range changes {
		if baseMap, ok := out[k].(map[string]interface{}); ok {
			if changeMap, ok := change.(map[string]interface{}); ok {
				out[k] = deepMerge(baseMap, changeMap)
				continue
			}
		}
		out[k] = change
	}

	return out
}
