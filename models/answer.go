package models

import "time"

// Source tells where a resolved number came from.
type Source string

const (
	SourceLibrary Source = "library"
	SourceOracle  Source = "oracle"
)

// QAEntry is a single question/number pair in the library.
type QAEntry struct {
	Question string `json:"question"`
	Number   int    `json:"number"`
}

// CurrentAnswer is the most recently resolved question/number pair.
// Exactly one is persisted at a time; every successful resolution
// overwrites it.
type CurrentAnswer struct {
	Question  string    `json:"question"`
	Number    int       `json:"number"`
	Source    Source    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// ResolutionResult is what a resolve call returns to its caller.
type ResolutionResult struct {
	Number int    `json:"number"`
	Source Source `json:"source"`
}

// Update is the message pushed to every broadcast subscriber after a
// successful resolution.
type Update struct {
	Type      string    `json:"type"`
	Number    int       `json:"number"`
	Question  string    `json:"question"`
	Source    Source    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// UpdateTypeNumber is the Type value for number updates.
const UpdateTypeNumber = "number-update"
