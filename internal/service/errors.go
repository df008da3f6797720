package service

import "fmt"

// FetchError marks a whole-query failure caused by one location's source.
// There is no partial success: omitting a location would produce a
// misleadingly low total, so the aggregation fails as a unit.
type FetchError struct {
	LocationID string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch metrics for location %s: %v", e.LocationID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
