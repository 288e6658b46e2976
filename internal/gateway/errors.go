package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/genai"
)

// Kind classifies a remote failure so callers can map it to a response
// or, later, a retry policy. The reference behavior reported every remote
// failure identically; the classification closes that gap.
type Kind string

const (
	KindAuth    Kind = "auth"
	KindQuota   Kind = "quota"
	KindNetwork Kind = "network"
	KindContent Kind = "content_rejected"
	KindUnknown Kind = "unknown"
)

// RemoteError wraps a failure from the remote gateway with the operation
// that raised it and a classification of the cause.
type RemoteError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// KindOf extracts the classification from an error chain, or KindUnknown.
func KindOf(err error) Kind {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Op: op, Kind: classify(err), Err: err}
}

func classify(err error) Kind {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindAuth
		case http.StatusTooManyRequests:
			return KindQuota
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return KindContent
		}
		if apiErr.Code >= 500 {
			return KindNetwork
		}
		return KindUnknown
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}
	return KindUnknown
}
