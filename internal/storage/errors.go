package storage

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
)

var (
	// ErrCredentialsMissing means the SDK credential chain produced nothing.
	ErrCredentialsMissing = errors.New("aws credentials not found")
	// ErrBucketNotFound means the configured bucket does not exist.
	ErrBucketNotFound = errors.New("s3 bucket does not exist")
)

// OpError describes a failed store call. Code carries the provider error
// code when the failure came from the store API; it is empty for transport
// or local failures.
type OpError struct {
	Op   string
	Code string
	Err  error
}

func (e *OpError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// mapStoreError converts SDK failures into the store error taxonomy.
// NoSuchBucket and the credential chain error get sentinel identities so
// callers can match them with errors.Is; everything else keeps its code.
func mapStoreError(op string, err error) error {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return &OpError{Op: op, Err: err}
	}

	switch aerr.Code() {
	case s3.ErrCodeNoSuchBucket:
		return &OpError{Op: op, Code: aerr.Code(), Err: ErrBucketNotFound}
	case "NoCredentialProviders":
		return &OpError{Op: op, Code: aerr.Code(), Err: ErrCredentialsMissing}
	}
	return &OpError{Op: op, Code: aerr.Code(), Err: aerr}
}

// ErrorCode extracts the provider error code from a store error, or ""
// when the error did not come from the store API.
func ErrorCode(err error) string {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Code
	}
	return ""
}
