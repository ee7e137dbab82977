package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ksree/pdf-upload-service/internal/metrics"
	"github.com/ksree/pdf-upload-service/internal/middleware"
	"github.com/ksree/pdf-upload-service/internal/security"
	"github.com/ksree/pdf-upload-service/internal/storage"
)

const (
	uploadFieldName   = "file"
	storageKeyPrefix  = "pdfs/"
	uploadContentType = "application/pdf"
)

// UploadResult is the success payload returned to the client. PresignedURL
// is nil when URL generation failed after a successful upload.
type UploadResult struct {
	Message      string  `json:"message"`
	Filename     string  `json:"filename"`
	S3Key        string  `json:"s3_key"`
	PresignedURL *string `json:"presigned_url"`
	FileSize     int64   `json:"file_size"`
}

// handleUpload accepts a multipart PDF upload, stores it and answers with
// the storage key and a presigned read URL. The request body is capped at
// the configured maximum before any parsing happens.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Upload.MaxSize)

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.metrics.IncUpload(metrics.OutcomeRejected)
			writeError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(s.config.Upload.MaxSize))
			return
		}
		s.metrics.IncUpload(metrics.OutcomeRejected)
		writeError(w, errNoFile.Status, errNoFile.Message)
		return
	}
	defer file.Close()

	result, err := s.processUpload(r.Context(), file, header.Filename)
	if err != nil {
		s.writeUploadError(w, r, header.Filename, err)
		return
	}

	s.metrics.IncUpload(metrics.OutcomeAccepted)
	s.metrics.ObserveUploadSize(result.FileSize)
	writeJSON(w, http.StatusOK, result)
}

// processUpload runs the validation pipeline in order and stores the
// payload. Checks short-circuit on the first failure and every failure
// comes back as *UploadError.
func (s *Server) processUpload(ctx context.Context, stream io.ReadSeeker, declaredFilename string) (*UploadResult, error) {
	if declaredFilename == "" {
		return nil, errNoFileSelected
	}

	if !strings.HasSuffix(strings.ToLower(declaredFilename), ".pdf") {
		return nil, errNotPDF
	}

	info, err := inspectPayload(stream)
	if err != nil {
		return nil, errServerFault(err)
	}
	if !info.IsPDF {
		return nil, errInvalidPDF
	}

	if info.Size > s.config.Upload.MaxSize {
		return nil, errTooLarge(s.config.Upload.MaxSize)
	}

	if s.config.AWS.Bucket == "" {
		return nil, errBucketNotConfigured
	}
	if s.store == nil {
		return nil, errClientNotReady
	}

	safeName := security.SanitizeFilename(declaredFilename)
	if safeName == "" {
		return nil, errInvalidFilename
	}

	key := storageKeyPrefix + uuid.New().String() + "_" + safeName

	metadata := map[string]string{
		"original_filename": safeName,
		"file_size":         strconv.FormatInt(info.Size, 10),
	}

	putCtx, cancel := context.WithTimeout(ctx, s.config.Upload.PutTimeout)
	defer cancel()

	start := time.Now()
	if err := s.store.PutObject(putCtx, key, stream, info.Size, uploadContentType, metadata); err != nil {
		return nil, mapStorePutError(err)
	}

	logrus.WithFields(logrus.Fields{
		"filename": safeName,
		"key":      key,
		"size":     info.Size,
		"duration": time.Since(start),
	}).Info("File uploaded successfully")

	result := &UploadResult{
		Message:  "File uploaded successfully",
		Filename: safeName,
		S3Key:    key,
		FileSize: info.Size,
	}

	// Presign failure is non-fatal: the upload itself succeeded.
	url, err := s.store.PresignGet(key, s.config.Upload.PresignTTL)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Could not generate presigned URL")
		return result, nil
	}
	result.PresignedURL = &url

	return result, nil
}

// mapStorePutError translates store failures into the client-facing
// error taxonomy.
func mapStorePutError(err error) *UploadError {
	switch {
	case errors.Is(err, storage.ErrCredentialsMissing):
		return errCredentialsMissing(err)
	case errors.Is(err, storage.ErrBucketNotFound):
		return errBucketMissing(err)
	}
	if code := storage.ErrorCode(err); code != "" {
		return errStoreFailure(code, err)
	}
	return errUploadFailed(err)
}

// writeUploadError logs, meters and answers a failed upload.
func (s *Server) writeUploadError(w http.ResponseWriter, r *http.Request, filename string, err error) {
	var apiErr *UploadError
	if !errors.As(err, &apiErr) {
		apiErr = errServerFault(err)
	}

	entry := logrus.WithFields(logrus.Fields{
		"method":   r.Method,
		"path":     r.URL.Path,
		"status":   apiErr.Status,
		"filename": filename,
	})

	if apiErr.Status >= http.StatusInternalServerError {
		s.metrics.IncUpload(metrics.OutcomeFailed)
		if apiErr.Err != nil {
			entry = entry.WithError(apiErr.Err)
		}
		entry.Error(apiErr.Message)
		middleware.CaptureError(r.Context(), apiErr,
			map[string]string{"operation": "upload"},
			map[string]interface{}{"filename": filename})
	} else {
		s.metrics.IncUpload(metrics.OutcomeRejected)
		entry.Info(apiErr.Message)
	}

	writeError(w, apiErr.Status, apiErr.Message)
}
