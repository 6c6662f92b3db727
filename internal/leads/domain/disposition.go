package domain

// Reviewer-recorded dispositions explaining why a lead did or didn't advance.
const (
	DispositionDoesntQualify         = "DOESNT_QUALIFY"
	DispositionPatientDeclined       = "PATIENT_DECLINED"
	DispositionDupe                  = "DUPE"
	DispositionConnectedToCompliance = "CONNECTED_TO_COMPLIANCE"
	DispositionComplianceIssue       = "COMPLIANCE_ISSUE"
	DispositionCallBack              = "CALL_BACK"
	DispositionCallDropped           = "CALL_DROPPED"
)

// StatusForDisposition is the single total mapping from disposition to the
// status it implies. Every call site derives through here so a disposition
// always lands on the same status. The second return is false only for an
// unknown disposition code.
func StatusForDisposition(disposition string) (string, bool) {
	switch disposition {
	case DispositionDoesntQualify, DispositionPatientDeclined, DispositionDupe:
		return StatusQualified, true
	case DispositionConnectedToCompliance:
		return StatusSentToConsult, true
	case DispositionComplianceIssue, DispositionCallBack, DispositionCallDropped:
		return StatusAdvocateReview, true
	default:
		return "", false
	}
}

// IsKnownDisposition reports whether the code is a recognized disposition.
func IsKnownDisposition(disposition string) bool {
	_, ok := StatusForDisposition(disposition)
	return ok
}
