package models

// RetrievedChunk is a single search result handed to the answer synthesiser.
// Score is a similarity in the index metric's range; higher is more relevant.
type RetrievedChunk struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// AnswerResult is the outcome of one question/answer cycle.
//
// Confidence is the raw similarity score of the top-ranked retrieved chunk
// (1.0 for caller-selected text, 0 when nothing was found). It is a relevance
// proxy, not a calibrated probability.
type AnswerResult struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}
