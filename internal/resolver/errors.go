package resolver

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidRequest is returned when a request contains an empty entity name
// or an empty attribute name.
var ErrInvalidRequest = errors.New("invalid attribute request")

// NonNumericAttributeError reports an attribute whose value cannot be read
// as a finite number after normalization, e.g. SWAPI's "unknown".
type NonNumericAttributeError struct {
	Source    string
	Entity    string
	Attribute string
	Raw       any
}

func (e *NonNumericAttributeError) Error() string {
	return fmt.Sprintf("%s source: attribute %s of %q is not numeric: %v", e.Source, e.Attribute, e.Entity, e.Raw)
}

// ExhaustedSourcesError reports a pair that no source could satisfy.
// Attempts holds the per-source failure reasons in priority order.
type ExhaustedSourcesError struct {
	Key      string
	Attempts []error
}

func (e *ExhaustedSourcesError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("no source resolved %s", e.Key)
	}
	reasons := make([]string, len(e.Attempts))
	for i, err := range e.Attempts {
		reasons[i] = err.Error()
	}
	return fmt.Sprintf("no source resolved %s: %s", e.Key, strings.Join(reasons, "; "))
}

func (e *ExhaustedSourcesError) Unwrap() []error {
	return e.Attempts
}

// UnresolvedError is returned by Resolve under PolicyStrict when one or more
// pairs could not be resolved. The values returned alongside it still hold
// the default for every failed key.
type UnresolvedError struct {
	Failures map[string]error
}

func (e *UnresolvedError) Error() string {
	keys := make([]string, 0, len(e.Failures))
	for k := range e.Failures {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return fmt.Sprintf("unresolved attributes: %s", strings.Join(keys, ", "))
}
