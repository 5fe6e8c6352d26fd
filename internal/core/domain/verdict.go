package domain

// Verdict is the admission decision for one document's recognized text.
// A rejection is a designed exclusion outcome, not an error.
type Verdict struct {
	Accepted bool
	Reason   string
}

func Accepted() Verdict {
	return Verdict{Accepted: true}
}

func Rejected(reason string) Verdict {
	return Verdict{Accepted: false, Reason: reason}
}
