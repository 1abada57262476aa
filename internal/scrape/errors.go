package scrape

import "fmt"

// StatusError reports a non-2xx response from the transport.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.Code, e.URL)
}

// FetchError is returned once the retry budget is exhausted. LastStatus is
// the HTTP status of the final failed attempt, or "unknown" when the failure
// never produced a response.
type FetchError struct {
	URL        string
	LastStatus string
	Attempts   int
	cause      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts (last status %s): %v",
		e.URL, e.Attempts, e.LastStatus, e.cause)
}

func (e *FetchError) Unwrap() error {
	return e.cause
}
