package model

// ValidationStatus summarizes how trustworthy a classified receipt is.
type ValidationStatus string

// Validation status constants, from least to most severe.
const (
	StatusValid       ValidationStatus = "valid"
	StatusWarning     ValidationStatus = "warning"
	StatusNeedsReview ValidationStatus = "needs_review"
	StatusInvalid     ValidationStatus = "invalid"
)

var statusRank = map[ValidationStatus]int{
	StatusValid:       0,
	StatusWarning:     1,
	StatusNeedsReview: 2,
	StatusInvalid:     3,
}

// Raise returns the more severe of s and other.
func (s ValidationStatus) Raise(other ValidationStatus) ValidationStatus {
	if statusRank[other] > statusRank[s] {
		return other
	}
	return s
}

// IssueType identifies the kind of validation problem.
type IssueType string

// Issue type constants.
const (
	IssueSumMismatch      IssueType = "sum_mismatch"
	IssueTaxRateRange     IssueType = "tax_rate_out_of_range"
	IssueTipRateRange     IssueType = "tip_rate_out_of_range"
	IssueDuplicate        IssueType = "duplicate_category"
	IssueMissingTotal     IssueType = "missing_total"
	IssueFallbackUsed     IssueType = "fallback_used"
	IssueLowConfidence    IssueType = "low_confidence"
	IssueMissingResponses IssueType = "missing_classifications"
)

// IssueSeverity ranks validation issues.
type IssueSeverity string

// Issue severity constants.
const (
	SeverityInfo    IssueSeverity = "info"
	SeverityWarning IssueSeverity = "warning"
	SeverityError   IssueSeverity = "error"
)

// Status returns the receipt status implied by an issue of this severity.
func (s IssueSeverity) Status() ValidationStatus {
	switch s {
	case SeverityError:
		return StatusInvalid
	case SeverityWarning:
		return StatusWarning
	default:
		return StatusValid
	}
}

// ValidationIssue is a problem detected in a classified receipt.
type ValidationIssue struct {
	Type            IssueType
	Message         string
	Severity        IssueSeverity
	AffectedItemIDs []string
}
