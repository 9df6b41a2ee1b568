package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/the-bill-must-split/internal/common"
	"github.com/Veraticus/the-bill-must-split/internal/model"
)

// ItemClassification is the parsed answer for a single receipt line.
type ItemClassification struct {
	Category   model.ItemCategory
	Reasoning  string
	Confidence float64
}

// BatchEntry is one parsed line of a whole-receipt answer. Category is the
// raw text returned by the model; callers map it with model.ParseItemCategory.
type BatchEntry struct {
	Category   string
	Reasoning  string
	ItemNumber int
	Confidence float64
}

// cleanMarkdownWrapper strips ```json fences and surrounding whitespace.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```JSON")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	return strings.TrimSpace(content)
}

// extractJSON trims leading or trailing prose around the outermost object
// or array.
func extractJSON(content string) (string, error) {
	content = cleanMarkdownWrapper(content)

	open, closing := "{", "}"
	objIdx := strings.Index(content, "{")
	arrIdx := strings.Index(content, "[")
	if arrIdx != -1 && (objIdx == -1 || arrIdx < objIdx) {
		open, closing = "[", "]"
	}

	start := strings.Index(content, open)
	if start == -1 {
		return "", fmt.Errorf("%w: no JSON found in response", common.ErrParse)
	}
	end := strings.LastIndex(content, closing)
	if end < start {
		return "", fmt.Errorf("%w: unterminated JSON in response", common.ErrParse)
	}
	return content[start : end+1], nil
}

// normalizeConfidence accepts 0-1 scores and 0-100 percentages.
func normalizeConfidence(c float64) float64 {
	if c > 1 {
		c /= 100
	}
	return model.ClampConfidence(c)
}

// ParseItemResponse parses a {category, confidence, reasoning} answer. An
// unknown category yields common.ErrInvalidCategory.
func ParseItemResponse(content string) (ItemClassification, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return ItemClassification{}, err
	}

	if err := validateAgainst(itemSchema, []byte(raw)); err != nil {
		return ItemClassification{}, fmt.Errorf("%w: %w", common.ErrParse, err)
	}

	var resp struct {
		Category   string  `json:"category"`
		Reasoning  string  `json:"reasoning"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return ItemClassification{}, fmt.Errorf("%w: %w", common.ErrParse, err)
	}

	category, err := model.ParseItemCategory(resp.Category)
	if err != nil {
		return ItemClassification{}, err
	}

	return ItemClassification{
		Category:   category,
		Confidence: normalizeConfidence(resp.Confidence),
		Reasoning:  strings.TrimSpace(resp.Reasoning),
	}, nil
}

// ParseBatchResponse parses either {"classifications": [...]} or a bare array.
func ParseBatchResponse(content string) ([]BatchEntry, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(raw, "[") {
		raw = `{"classifications":` + raw + `}`
	}

	if err := validateAgainst(batchSchema, []byte(raw)); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrParse, err)
	}

	var resp struct {
		Classifications []struct {
			Category   string   `json:"category"`
			Reasoning  string   `json:"reasoning"`
			Confidence *float64 `json:"confidence"`
			ItemNumber int      `json:"itemNumber"`
		} `json:"classifications"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrParse, err)
	}

	entries := make([]BatchEntry, 0, len(resp.Classifications))
	for _, c := range resp.Classifications {
		confidence := 0.5
		if c.Confidence != nil {
			confidence = normalizeConfidence(*c.Confidence)
		}
		entries = append(entries, BatchEntry{
			ItemNumber: c.ItemNumber,
			Category:   strings.TrimSpace(c.Category),
			Confidence: confidence,
			Reasoning:  strings.TrimSpace(c.Reasoning),
		})
	}
	return entries, nil
}
