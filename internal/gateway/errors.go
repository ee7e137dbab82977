package gateway

import (
	"fmt"
	"net/http"
)

// UploadError carries the HTTP status and the client-facing message for
// a rejected or failed upload. Err holds the underlying cause for logging
// and Sentry; it is never sent to clients.
type UploadError struct {
	Status  int
	Message string
	Err     error
}

func (e *UploadError) Error() string { return e.Message }

func (e *UploadError) Unwrap() error { return e.Err }

// Rejections, in the order the validation pipeline raises them.
var (
	errNoFile          = &UploadError{Status: http.StatusBadRequest, Message: "No file provided"}
	errNoFileSelected  = &UploadError{Status: http.StatusBadRequest, Message: "No file selected"}
	errNotPDF          = &UploadError{Status: http.StatusBadRequest, Message: "Only PDF files are allowed"}
	errInvalidPDF      = &UploadError{Status: http.StatusBadRequest, Message: "File is not a valid PDF"}
	errInvalidFilename = &UploadError{Status: http.StatusBadRequest, Message: "Invalid filename"}
)

// Configuration failures surfaced before the store is called.
var (
	errBucketNotConfigured = &UploadError{Status: http.StatusInternalServerError, Message: "S3 bucket not configured"}
	errClientNotReady      = &UploadError{Status: http.StatusInternalServerError, Message: "Failed to initialize S3 client"}
)

// tooLargeMessage reports the limit in whole megabytes, matching the
// transport-level cap response.
func tooLargeMessage(maxSize int64) string {
	return fmt.Sprintf("File size exceeds %dMB limit", maxSize/(1024*1024))
}

func errTooLarge(maxSize int64) *UploadError {
	return &UploadError{Status: http.StatusBadRequest, Message: tooLargeMessage(maxSize)}
}

func errCredentialsMissing(cause error) *UploadError {
	return &UploadError{Status: http.StatusInternalServerError, Message: "AWS credentials not found", Err: cause}
}

func errBucketMissing(cause error) *UploadError {
	return &UploadError{Status: http.StatusInternalServerError, Message: "S3 bucket does not exist", Err: cause}
}

func errStoreFailure(code string, cause error) *UploadError {
	return &UploadError{
		Status:  http.StatusInternalServerError,
		Message: fmt.Sprintf("S3 error: %s", code),
		Err:     cause,
	}
}

func errUploadFailed(cause error) *UploadError {
	return &UploadError{
		Status:  http.StatusInternalServerError,
		Message: fmt.Sprintf("Upload failed: %v", cause),
		Err:     cause,
	}
}

func errServerFault(cause error) *UploadError {
	return &UploadError{
		Status:  http.StatusInternalServerError,
		Message: fmt.Sprintf("Server error: %v", cause),
		Err:     cause,
	}
}
