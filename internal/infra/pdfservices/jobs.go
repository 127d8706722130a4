package pdfservices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Job is an operation submitted against an uploaded asset.
type Job interface {
	operation() string
	payload() any
}

// AccessibilityCheckerJob checks a PDF and produces a JSON report.
type AccessibilityCheckerJob struct {
	Input Asset
}

func (AccessibilityCheckerJob) operation() string { return "/operation/accessibilitychecker" }

func (j AccessibilityCheckerJob) payload() any {
	return map[string]any{"assetID": j.Input.ID}
}

// AutoTagJob adds structure tags to a PDF, optionally with an XLSX report.
type AutoTagJob struct {
	Input          Asset
	GenerateReport bool
	ShiftHeadings  bool
}

func (AutoTagJob) operation() string { return "/operation/autotag" }

func (j AutoTagJob) payload() any {
	return map[string]any{
		"assetID":        j.Input.ID,
		"generateReport": j.GenerateReport,
		"shiftHeadings":  j.ShiftHeadings,
	}
}

// PollingURL is the opaque handle returned by Submit.
type PollingURL string

// JobResult is the terminal state of a finished job. Which assets are set
// depends on the operation.
type JobResult struct {
	Status    string `json:"status"`
	Asset     *Asset `json:"asset,omitempty"`
	Report    *Asset `json:"report,omitempty"`
	TaggedPDF *Asset `json:"tagged-pdf,omitempty"`
}

const (
	statusInProgress = "in progress"
	statusDone       = "done"
	statusFailed     = "failed"
)

type statusResponse struct {
	JobResult
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"error,omitempty"`
}

// Submit starts job and returns its polling URL.
func (c *Client) Submit(ctx context.Context, job Job) (PollingURL, error) {
	resp, err := c.doJSON(ctx, "submit", http.MethodPost, c.endpoint(job.operation()), job.payload())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return "", newAPIError("submit", resp)
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("submit response has no Location header")
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("invalid polling url %q: %w", loc, err)
	}
	if !u.IsAbs() {
		loc = c.baseURL + u.String()
	}
	return PollingURL(loc), nil
}

// Wait polls until the job is done or failed, or ctx ends.
func (c *Client) Wait(ctx context.Context, polling PollingURL) (*JobResult, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		st, err := c.status(ctx, polling)
		if err != nil {
			return nil, err
		}
		switch st.Status {
		case statusDone:
			res := st.JobResult
			return &res, nil
		case statusFailed:
			jobErr := &JobError{Code: "UNKNOWN", Message: "job failed"}
			if st.Error != nil {
				jobErr.Code, jobErr.Message, jobErr.Status = st.Error.Code, st.Error.Message, st.Error.Status
			}
			return nil, jobErr
		case statusInProgress, "":
		default:
			return nil, fmt.Errorf("unexpected job status %q", st.Status)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) status(ctx context.Context, polling PollingURL) (*statusResponse, error) {
	resp, err := c.doJSON(ctx, "status", http.MethodGet, string(polling), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError("status", resp)
	}
	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode job status: %w", err)
	}
	return &st, nil
}
