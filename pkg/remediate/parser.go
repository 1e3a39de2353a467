package remediate

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ParseAnalysis decodes the model's JSON analysis. When the response is
// not valid JSON the raw text is preserved in FullAnalysis instead of
// failing the whole operation.
func ParseAnalysis(raw string) *Analysis {
	cleaned := stripFences(raw)

	var analysis Analysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return &Analysis{
			RootCause: RootCause{
				Cause:      "Analysis completed (see full analysis for details)",
				Confidence: 0,
				Impact:     "unknown",
			},
			FullAnalysis: raw,
		}
	}
	return &analysis
}

// stripFences removes markdown code fences such as ```json ... ``` so JSON can be parsed
func stripFences(text string) string {
	re := regexp.MustCompile("```[a-zA-Z]*\n|```")
	return strings.TrimSpace(re.ReplaceAllString(text, ""))
}
