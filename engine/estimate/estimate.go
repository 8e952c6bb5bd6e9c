// Package estimate approximates the serialized size of tool responses.
//
// The estimate is deliberately coarse: responses are measured by canonical
// JSON length and converted to "tokens" with a fixed chars-per-token divisor.
// It is a budgeting heuristic, not an exact token count.
package estimate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultCharsPerToken is the default chars-per-token approximation
const DefaultCharsPerToken = 4

// Estimator estimates the serialized size of arbitrary values
type Estimator struct {
	// CharsPerToken converts byte length to estimated tokens
	CharsPerToken int
}

// NewEstimator creates an estimator with the default divisor
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: DefaultCharsPerToken}
}

// Size returns the byte length of the canonical JSON serialization of v.
// Values that cannot be marshaled fall back to their fmt representation,
// so Size never fails.
func (e *Estimator) Size(v any) int {
	data, err := json.Marshal(v)
	if err == nil {
		return len(data)
	}
	// fmt recurses forever on self-referential values, so a cycle gets a
	// fixed-form estimate instead of the %v fallback
	var valErr *json.UnsupportedValueError
	if errors.As(err, &valErr) && strings.Contains(valErr.Str, "cycle") {
		return len(fmt.Sprintf("%T(cyclic)", v))
	}
	return len(fmt.Sprintf("%v", v))
}

// Tokens returns the estimated token count for v
func (e *Estimator) Tokens(v any) int {
	divisor := e.CharsPerToken
	if divisor <= 0 {
		divisor = DefaultCharsPerToken
	}
	return e.Size(v) / divisor
}

var defaultEstimator = NewEstimator()

// Size estimates the serialized byte length of v using the default estimator
func Size(v any) int {
	return defaultEstimator.Size(v)
}

// Tokens estimates the token count of v using the default estimator
func Tokens(v any) int {
	return defaultEstimator.Tokens(v)
}
