package models

// ExtractionResult holds the output of a finished extraction.
type ExtractionResult struct {
	Text      string `json:"text"`
	PageCount int    `json:"pageCount"`
	WordCount int    `json:"wordCount"`
}

// ExtractionEvent is one element of an engine's event stream.
// Exactly one of Result or Err is set on the terminal event; progress
// events carry neither.
type ExtractionEvent struct {
	Progress int
	Result   *ExtractionResult
	Err      error
}

// IsTerminal reports whether the event settles the extraction.
func (e ExtractionEvent) IsTerminal() bool {
	return e.Result != nil || e.Err != nil
}

// Export is a downloadable rendering of an extraction result.
type Export struct {
	Data        []byte
	Filename    string
	ContentType string
}
