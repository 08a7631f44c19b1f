package core

import "fmt"

// FetchError reports an adapter returning an empty or malformed payload,
// missing required fields, or a fetcher wired to the wrong source kind.
type FetchError struct {
	Msg string
}

func (e *FetchError) Error() string {
	return e.Msg
}

// Fetchf builds a FetchError from a format string.
func Fetchf(format string, args ...any) error {
	return &FetchError{Msg: fmt.Sprintf(format, args...)}
}
