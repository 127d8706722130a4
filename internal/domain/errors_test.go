package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageErrors_MatchSentinelsAndCause(t *testing.T) {
	cause := errors.New("chrome exited")
	err := fmt.Errorf("render: %w", NewStageError(StageNormalize, cause))

	assert.ErrorIs(t, err, ErrNormalize)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrRemote)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.Equal(t, StageNormalize, StageOf(err))
	assert.Contains(t, err.Error(), "normalize")
}

func TestStageErrors_NilAndPlain(t *testing.T) {
	assert.Nil(t, NewStageError(StageRemote, nil))
	assert.Equal(t, Stage(""), StageOf(errors.New("plain")))
}

func TestDomainErrors_AreDistinct(t *testing.T) {
	all := []error{ErrNoFile, ErrInvalidPDF, ErrNormalize, ErrRemote, ErrStorage}
	for i := range all {
		assert.NotEmpty(t, all[i].Error())
		for j := range all {
			if i != j {
				assert.NotErrorIs(t, all[i], all[j])
			}
		}
	}
}

func TestUpload_IsWordDocument(t *testing.T) {
	tests := []struct {
		name string
		in   Upload
		want bool
	}{
		{"docx mime", Upload{Name: "a.bin", MIMEType: MIMEDocx}, true},
		{"docx suffix", Upload{Name: "sample.docx", MIMEType: "application/octet-stream"}, true},
		{"pdf", Upload{Name: "sample.pdf", MIMEType: MIMEPDF}, false},
		{"legacy doc", Upload{Name: "old.doc", MIMEType: "application/msword"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.IsWordDocument())
		})
	}
}
