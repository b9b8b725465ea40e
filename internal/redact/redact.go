// Package redact scrubs secrets and obvious PII from text and data rows
// before they are inserted into prompts for the external text-generation
// service. Sample failing rows and document excerpts always pass through
// here on their way out of the process.
package redact

import (
	"os"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// pemPattern matches PEM key blocks across multiple lines.
var pemPattern = regexp.MustCompile(`(?s)-----BEGIN [A-Z ]+KEY-----.*?-----END [A-Z ]+KEY-----`)

// patterns holds single-line detection regexes in priority order.
var patterns = []*regexp.Regexp{
	// AWS access key IDs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	// OpenAI / Anthropic secret keys; hyphens allowed for prefixed forms
	// like sk-ant-...
	regexp.MustCompile(`(?:^|\s|["'])sk-[a-zA-Z0-9-]{20,}`),
	// JWT tokens (three base64url segments)
	regexp.MustCompile(`eyJ[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+`),
	// Bearer tokens — require minimum 20-char token to avoid false positives
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]{20,}=*`),
	// Inline password assignments
	regexp.MustCompile(`(?i)password\s*[:=]\s*\S+`),
	// Email addresses: compliance datasets routinely carry contact columns
	regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	// Card-number-like digit runs (13-19 digits, optionally grouped)
	regexp.MustCompile(`\b(?:\d[ \-]?){13,19}\b`),
}

// Redact replaces known secret and PII patterns in input with [REDACTED].
// Line structure is preserved — the number of newlines in the output always
// equals the number of newlines in the input.
func Redact(input string) string {
	// Handle PEM blocks first: replace each line within the block
	// individually so that line count is preserved.
	input = pemPattern.ReplaceAllStringFunc(input, func(match string) string {
		lines := strings.Split(match, "\n")
		for i := range lines {
			lines[i] = redacted
		}
		return strings.Join(lines, "\n")
	})

	for _, re := range patterns {
		input = re.ReplaceAllString(input, redacted)
	}
	return input
}

// RedactRows scrubs every string cell of the given row maps, returning new
// maps. Non-string cells pass through unchanged: numeric and boolean cells
// cannot carry the patterns above.
func RedactRows(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		clean := make(map[string]any, len(row))
		for k, v := range row {
			if s, ok := v.(string); ok {
				clean[k] = Redact(s)
			} else {
				clean[k] = v
			}
		}
		out[i] = clean
	}
	return out
}

// RedactFile reads a file, redacts its content, and returns the result.
func RedactFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Redact(string(data)), nil
}
