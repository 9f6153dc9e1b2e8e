package client

import (
	"errors"
	"fmt"
)

// Kind classifies why a query did not produce a usable response.
type Kind string

const (
	// KindNetwork covers connection refused, DNS, timeouts and cancelled contexts.
	KindNetwork Kind = "network"
	// KindServer is a non-2xx HTTP status.
	KindServer Kind = "server"
	// KindMalformed is a body that is not a JSON object of the expected shape.
	KindMalformed Kind = "malformed"
)

// Failure is the error returned by Send for every upstream problem.
// Failures are never retried by the client.
type Failure struct {
	Kind   Kind
	Status int
	Err    error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case KindServer:
		return fmt.Sprintf("query API returned status %d", f.Status)
	case KindMalformed:
		return fmt.Sprintf("malformed query API response: %v", f.Err)
	default:
		return fmt.Sprintf("calling query API: %v", f.Err)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func networkFailure(err error) error {
	return &Failure{Kind: KindNetwork, Err: err}
}

func serverFailure(status int) error {
	return &Failure{Kind: KindServer, Status: status}
}

func malformedFailure(err error) error {
	return &Failure{Kind: KindMalformed, Err: err}
}
