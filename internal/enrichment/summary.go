package enrichment

type Part int

const (
	PartSummary Part = iota
	PartPrediction
	PartTerm
)

func (p Part) String() string {
	switch p {
	case PartSummary:
		return "summary"
	case PartPrediction:
		return "prediction"
	case PartTerm:
		return "term"
	default:
		return "unknown"
	}
}

// Outcome says where a Field's text came from.
type Outcome int

const (
	Generated Outcome = iota
	// NotAttempted: the input was unusable, so no request was made.
	NotAttempted
	// RequestFailed: the provider call for this part (or an earlier one)
	// failed.
	RequestFailed
)

type Field struct {
	Text    string
	Outcome Outcome
}

// Summary is the three-part enrichment of one bill.
type Summary struct {
	Summary    Field
	Prediction Field
	Term       Field
}

const (
	unavailableSummary    = "요약 불가"
	unavailablePrediction = "영향 예측 불가"
	unavailableTerm       = "용어 설명 불가"

	failedSummary    = "GPT 요약 실패"
	failedPrediction = "GPT 예측 실패"
	failedTerm       = "GPT 용어 설명 실패"
)

// Unavailable is the result for content that could not be scraped.
func Unavailable() Summary {
	return Summary{
		Summary:    Field{Text: unavailableSummary, Outcome: NotAttempted},
		Prediction: Field{Text: unavailablePrediction, Outcome: NotAttempted},
		Term:       Field{Text: unavailableTerm, Outcome: NotAttempted},
	}
}

// Failed is the result when every provider call failed.
func Failed() Summary {
	return Summary{
		Summary:    Field{Text: failedSummary, Outcome: RequestFailed},
		Prediction: Field{Text: failedPrediction, Outcome: RequestFailed},
		Term:       Field{Text: failedTerm, Outcome: RequestFailed},
	}
}

// Complete reports whether all three parts were generated.
func (s Summary) Complete() bool {
	return s.Summary.Outcome == Generated &&
		s.Prediction.Outcome == Generated &&
		s.Term.Outcome == Generated
}

// Degraded reports whether any part holds a sentinel instead of generated
// text.
func (s Summary) Degraded() bool {
	return !s.Complete()
}

// Texts returns summary, prediction and glossary text in that order.
func (s Summary) Texts() (string, string, string) {
	return s.Summary.Text, s.Prediction.Text, s.Term.Text
}

func (s *Summary) set(p Part, f Field) {
	switch p {
	case PartSummary:
		s.Summary = f
	case PartPrediction:
		s.Prediction = f
	case PartTerm:
		s.Term = f
	}
}
