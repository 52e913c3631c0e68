package domain

// Option is one answer choice of a multiple-choice question.
type Option struct {
	Label   string `json:"label"`
	Value   string `json:"value"`
	Correct bool   `json:"correct,omitempty"`
}

// Explanation is shown after the learner answers.
type Explanation struct {
	Definition   string `json:"definition,omitempty"`
	PartOfSpeech string `json:"pos,omitempty"`
	Example      string `json:"example,omitempty"`
	Note         string `json:"note,omitempty"`
}

// QuizQuestion is a generated question. It is never persisted.
type QuizQuestion struct {
	ID              string       `json:"id"`
	Type            QuestionType `json:"type"`
	Lemma           string       `json:"lemma"`
	SenseID         string       `json:"sense_id"`
	EntryType       EntryType    `json:"entry_type"`
	Prompt          string       `json:"prompt"`
	SentenceContext string       `json:"sentence_context,omitempty"`
	Options         []Option     `json:"options,omitempty"`
	Correct         string       `json:"correct"`
	InflectedForm   string       `json:"inflected_form,omitempty"`
	AcceptVariants  []string     `json:"accept_variants,omitempty"`
	ExamSource      string       `json:"exam_source,omitempty"`
	Explanation     Explanation  `json:"explanation"`
}

// CorrectOption returns the option marked correct, if any.
func (q QuizQuestion) CorrectOption() (Option, bool) {
	for _, o := range q.Options {
		if o.Correct {
			return o, true
		}
	}
	return Option{}, false
}
