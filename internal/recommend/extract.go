package recommend

import (
	"encoding/json"
	"regexp"
	"strings"

	"mangashelf/pkg/models"
)

// Accepted fixes, applied in order to the bracketed slice.
var (
	blockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment   = regexp.MustCompile(`(?m)//.*$`)
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	bareKey       = regexp.MustCompile(`([{,]\s*)(\w+):`)
)

// ExtractJSONArray slices content from the first '[' to the last ']' and
// normalizes it. It does not check that the result parses.
func ExtractJSONArray(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrNoContent
	}
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || end < start {
		return "", ErrNoJSONFound
	}
	s := content[start : end+1]
	s = blockComment.ReplaceAllString(s, "")
	s = lineComment.ReplaceAllString(s, "")
	s = trailingComma.ReplaceAllString(s, "${1}")
	s = bareKey.ReplaceAllString(s, `${1}"${2}":`)
	return strings.TrimSpace(s), nil
}

// ParseCandidates extracts and decodes a candidate array from model output.
func ParseCandidates(content string) ([]models.Candidate, error) {
	raw, err := ExtractJSONArray(content)
	if err != nil {
		return nil, err
	}
	var out []models.Candidate
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, &ParseError{Content: raw, Err: err}
	}
	cleaned := out[:0]
	for _, c := range out {
		c.Title = strings.TrimSpace(c.Title)
		if c.Title == "" {
			continue
		}
		c.Author = strings.TrimSpace(c.Author)
		c.Genre = strings.TrimSpace(c.Genre)
		c.Reason = strings.TrimSpace(c.Reason)
		// model-supplied review data is never trusted
		c.ReviewAverage, c.ReviewCount, c.QualityScore = nil, nil, nil
		c.Verified, c.ImageURL = false, ""
		cleaned = append(cleaned, c)
	}
	return cleaned, nil
}
