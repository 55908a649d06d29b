// Package search provides web search triggering, execution and caching
// for the relay pipeline.
package search

// Status describes the outcome of a web search.
type Status int

const (
	StatusOK Status = iota
	StatusNoResults
	StatusError
)

// String returns the status name for logging.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNoResults:
		return "NO_RESULTS"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Result is a single search hit.
type Result struct {
	Title   string
	Snippet string
	URL     string
}

// Data is the outcome of one search invocation.
type Data struct {
	Status       Status
	Results      []Result
	ErrorMessage string
}
