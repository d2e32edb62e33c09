package dataflows

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable matches any DataUnavailableError.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrNoHistoricalData matches any NoHistoricalDataError.
	ErrNoHistoricalData = errors.New("no historical data")
)

// DataUnavailableError is returned when no price tier produced a value.
type DataUnavailableError struct {
	Symbol string
	// Cause is the last tier error, if any tier failed rather than came back empty.
	Cause error
}

func (e *DataUnavailableError) Error() string {
	msg := fmt.Sprintf("could not fetch price for %s using any method", e.Symbol)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Cause
}

// NoHistoricalDataError is returned when the source has no bars for the request.
type NoHistoricalDataError struct {
	Symbol   string
	Period   string
	Interval string
}

func (e *NoHistoricalDataError) Error() string {
	return fmt.Sprintf("no historical data available for %s with period %s and interval %s",
		e.Symbol, e.Period, e.Interval)
}

func (e *NoHistoricalDataError) Is(target error) bool {
	return target == ErrNoHistoricalData
}
