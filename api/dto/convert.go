package dto

import "errors"

var (
	ErrBatchNotFound   = errors.New("batch not found")
	ErrInvalidBatchID  = errors.New("batch id must be a UUID")
	ErrBatchInProgress = errors.New("batch id is already in use")
)

const (
	CodeInvalidInput    = "invalid_input"
	CodeInvalidArchive  = "invalid_archive"
	CodeNoImages        = "no_images"
	CodeAllFailed       = "all_failed"
	CodePackagingFailed = "packaging_failed"
	CodeInternal        = "internal"
)

// ConvertRequest carries the form fields of one upload. BatchID is optional;
// a client that sets it can poll /progress/{id} while the upload is running.
type ConvertRequest struct {
	BatchID    string
	Resolution string
	Background string
}

type FailedImage struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type ProgressResponse struct {
	BatchID     string   `json:"batch_id"`
	Total       int      `json:"total"`
	Submitted   int      `json:"submitted"`
	Completed   int      `json:"completed"`
	Failed      int      `json:"failed"`
	FailedPaths []string `json:"failed_paths,omitempty"`
	Done        bool     `json:"done"`
}

type ErrorResponse struct {
	Error    string        `json:"error"`
	Code     string        `json:"code,omitempty"`
	TraceID  string        `json:"trace_id,omitempty"`
	Failures []FailedImage `json:"failures,omitempty"`
}
