package domain

import (
	"io"
	"strings"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEJSON = "application/json"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Upload is a file received from a caller, held fully in memory.
type Upload struct {
	Name     string
	MIMEType string
	Data     []byte
}

// IsWordDocument reports whether the upload takes the DOCX conversion path.
func (u Upload) IsWordDocument() bool {
	return u.MIMEType == MIMEDocx || strings.HasSuffix(u.Name, ".docx")
}

// Document is the normalized PDF forwarded to the remote service.
type Document struct {
	Name      string
	MIMEType  string
	Data      []byte
	Converted bool
}

// JobKind selects the remote operation.
type JobKind string

const (
	JobAccessibilityCheck JobKind = "accessibility_check"
	JobAutoTag            JobKind = "autotag"
)

// Asset is a named byte stream fetched from the remote service. The caller
// owns Body and must close it.
type Asset struct {
	Name     string
	MIMEType string
	Body     io.ReadCloser
}

// Close releases the asset stream; it is safe on a nil asset.
func (a *Asset) Close() error {
	if a == nil || a.Body == nil {
		return nil
	}
	return a.Body.Close()
}
