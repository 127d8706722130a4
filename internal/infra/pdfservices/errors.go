package pdfservices

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// APIError is a non-success HTTP reply from the service.
type APIError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("pdfservices %s: status %d: %s: %s", e.Op, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("pdfservices %s: status %d: %s", e.Op, e.Status, e.Message)
}

// JobError is a job that the service reported as failed.
type JobError struct {
	Code    string
	Message string
	Status  int
}

func (e *JobError) Error() string {
	return fmt.Sprintf("pdfservices job failed: %s: %s", e.Code, e.Message)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newAPIError(op string, resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	e := &APIError{Op: op, Status: resp.StatusCode}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		e.Code, e.Message = body.Error.Code, body.Error.Message
		if e.Code == "" {
			e.Code = body.Code
		}
		if e.Message == "" {
			e.Message = body.Message
		}
	}
	if e.Message == "" {
		e.Message = string(raw)
	}
	return e
}

// IsRetryable reports whether err looks transient: throttling, a server-side
// failure or a network error. Nothing in this module retries; the result
// only goes to the logs.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr.Status == http.StatusTooManyRequests || jobErr.Status >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
