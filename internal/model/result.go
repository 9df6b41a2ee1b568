package model

// Confidence thresholds shared by results and items.
const (
	HighConfidenceThreshold   = 0.8
	ReviewConfidenceThreshold = 0.7
)

// ClassificationMethod records which technique produced a classification.
type ClassificationMethod string

// Classification method constants.
const (
	MethodGeometric         ClassificationMethod = "geometric"
	MethodHeuristic         ClassificationMethod = "heuristic"
	MethodPriceRelationship ClassificationMethod = "price_relationship"
	MethodLLM               ClassificationMethod = "llm"
	MethodManual            ClassificationMethod = "manual"
)

// ClassificationResult is the output of a single strategy invocation.
type ClassificationResult struct {
	Category   ItemCategory
	Method     ClassificationMethod
	Reasoning  string
	Confidence float64
}

// NewClassificationResult creates a result with confidence clamped into [0, 1].
func NewClassificationResult(category ItemCategory, confidence float64, method ClassificationMethod, reasoning string) ClassificationResult {
	return ClassificationResult{
		Category:   category,
		Confidence: ClampConfidence(confidence),
		Method:     method,
		Reasoning:  reasoning,
	}
}

// UnknownResult is the "no opinion" result a strategy returns.
func UnknownResult(method ClassificationMethod, confidence float64, reasoning string) ClassificationResult {
	return NewClassificationResult(CategoryUnknown, confidence, method, reasoning)
}

// IsHighConfidence reports whether the result can be trusted without review.
func (r ClassificationResult) IsHighConfidence() bool {
	return r.Confidence >= HighConfidenceThreshold
}

// NeedsReview reports whether a human should confirm the result.
func (r ClassificationResult) NeedsReview() bool {
	return r.Confidence < ReviewConfidenceThreshold
}

// ClampConfidence bounds a confidence score to [0, 1].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
