package nasa

import (
	"errors"
	"fmt"

	"neofeed/models"
)

// NetworkError means the server was never reached or answered with an
// HTTP level failure
type NetworkError struct {
	Range      models.DateRange
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetching feed %s: %v", e.Range, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// FormatError means the server answered but the body could not be decoded
type FormatError struct {
	Range models.DateRange
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("decoding feed %s: %v", e.Range, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func IsNetworkError(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

func IsFormatError(err error) bool {
	var target *FormatError
	return errors.As(err, &target)
}
