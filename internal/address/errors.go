package address

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned for an unknown record id.
var ErrNotFound = errors.New("address not found")

// GeocodeError reports that an address could not be placed on the map.
type GeocodeError struct {
	Address string
	Err     error
}

func (e *GeocodeError) Error() string {
	return fmt.Sprintf("geocoding %q: %v", e.Address, e.Err)
}

func (e *GeocodeError) Unwrap() error {
	return e.Err
}

// StoreError reports a failed persistence call. The registry is unchanged
// when one is returned.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
