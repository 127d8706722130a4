package domain

import (
	"errors"
	"fmt"
)

// Stage names a pipeline step that can fail.
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageRemote    Stage = "remote"
	StageStorage   Stage = "storage"
)

var (
	// ErrNoFile signals a request without the expected file field.
	ErrNoFile = errors.New("no file uploaded")
	// ErrInvalidPDF signals pass-through bytes that do not parse as a PDF.
	ErrInvalidPDF = errors.New("uploaded file is not a valid PDF")

	ErrNormalize = errors.New("normalization failed")
	ErrRemote    = errors.New("remote service failed")
	ErrStorage   = errors.New("storage failed")
)

// StageError records which step of the pipeline failed.
type StageError struct {
	Stage Stage
	Err   error
}

// NewStageError wraps err for stage; a nil err stays nil.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is matches the stage sentinel as well as anything in the wrapped chain.
func (e *StageError) Is(target error) bool {
	switch target {
	case ErrNormalize:
		return e.Stage == StageNormalize
	case ErrRemote:
		return e.Stage == StageRemote
	case ErrStorage:
		return e.Stage == StageStorage
	}
	return false
}

// StageOf returns the failing stage of err, or "" when err carries none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
