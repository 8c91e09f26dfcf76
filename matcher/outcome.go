package matcher

// OutcomeKind classifies a single evaluation attempt.
type OutcomeKind int

const (
	// Pass means the produced spans equal the expected spans.
	Pass OutcomeKind = iota

	// Fail covers both span mismatches and engine faults.
	Fail
)

func (k OutcomeKind) String() string {
	switch k {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// Outcome is the verdict of one attempt. Reason is empty for Pass.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

// Passed returns a Pass outcome.
func Passed() Outcome {
	return Outcome{Kind: Pass}
}

// Failed returns a Fail outcome carrying reason.
func Failed(reason string) Outcome {
	return Outcome{Kind: Fail, Reason: reason}
}

// IsPass reports whether the outcome is Pass.
func (o Outcome) IsPass() bool {
	return o.Kind == Pass
}
