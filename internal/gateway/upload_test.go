package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksree/pdf-upload-service/internal/config"
	"github.com/ksree/pdf-upload-service/internal/storage"
)

type putCall struct {
	key         string
	size        int64
	contentType string
	metadata    map[string]string
	body        []byte
	hadDeadline bool
}

// fakeStore records puts and serves canned failures.
type fakeStore struct {
	putErr     error
	presignErr error
	puts       []putCall
}

func (f *fakeStore) PutObject(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string, metadata map[string]string) error {
	if f.putErr != nil {
		return f.putErr
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	_, hadDeadline := ctx.Deadline()
	f.puts = append(f.puts, putCall{
		key:         key,
		size:        size,
		contentType: contentType,
		metadata:    metadata,
		body:        data,
		hadDeadline: hadDeadline,
	})
	return nil
}

func (f *fakeStore) PresignGet(key string, ttl time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return fmt.Sprintf("https://test-bucket.s3.amazonaws.com/%s?X-Amz-Expires=%d", key, int(ttl.Seconds())), nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Listen = ":8000"
	cfg.AWS.AccessKeyID = "test-access-key"
	cfg.AWS.SecretAccessKey = "test-secret-key"
	cfg.AWS.Bucket = "test-bucket"
	cfg.AWS.Region = "us-east-1"
	cfg.Upload.MaxSize = 50 * 1024 * 1024
	cfg.Upload.PresignTTL = time.Hour
	cfg.Upload.PutTimeout = 2 * time.Minute
	return cfg
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func postUpload(srv *Server, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHandleUpload_Success(t *testing.T) {
	store := &fakeStore{}
	srv := NewServer(testConfig(), store)

	content := []byte("%PDF-1.4\n%")
	body, contentType := multipartUpload(t, "file", "a.pdf", content)
	rec := postUpload(srv, body, contentType)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var result UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	assert.Equal(t, "File uploaded successfully", result.Message)
	assert.Equal(t, "a.pdf", result.Filename)
	assert.Equal(t, int64(10), result.FileSize)
	assert.Regexp(t, `^pdfs/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}_a\.pdf$`, result.S3Key)
	require.NotNil(t, result.PresignedURL)
	assert.Contains(t, *result.PresignedURL, result.S3Key)

	require.Len(t, store.puts, 1)
	put := store.puts[0]
	assert.Equal(t, result.S3Key, put.key)
	assert.Equal(t, int64(10), put.size)
	assert.Equal(t, "application/pdf", put.contentType)
	assert.Equal(t, "a.pdf", put.metadata["original_filename"])
	assert.Equal(t, "10", put.metadata["file_size"])
	assert.Equal(t, content, put.body)
	assert.True(t, put.hadDeadline, "put should run under a deadline")
}

func TestHandleUpload_UppercaseExtension(t *testing.T) {
	store := &fakeStore{}
	srv := NewServer(testConfig(), store)

	body, contentType := multipartUpload(t, "file", "REPORT.PDF", []byte("%PDF-1.4"))
	rec := postUpload(srv, body, contentType)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "REPORT.PDF", result.Filename)
}

func TestHandleUpload_NoFilePart(t *testing.T) {
	srv := NewServer(testConfig(), &fakeStore{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	rec := postUpload(srv, &buf, mw.FormDataContentType())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", decodeError(t, rec))
}

func TestHandleUpload_WrongFieldName(t *testing.T) {
	srv := NewServer(testConfig(), &fakeStore{})

	body, contentType := multipartUpload(t, "document", "a.pdf", []byte("%PDF-1.4"))
	rec := postUpload(srv, body, contentType)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", decodeError(t, rec))
}

func TestHandleUpload_EmptyFilenamePart(t *testing.T) {
	srv := NewServer(testConfig(), &fakeStore{})

	// A part with an empty filename parses as a plain form value, so
	// the file lookup fails.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename=""`)
	h.Set("Content-Type", "application/pdf")
	pw, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = pw.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := postUpload(srv, &buf, mw.FormDataContentType())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", decodeError(t, rec))
}

func TestHandleUpload_RejectsNonPDFExtension(t *testing.T) {
	srv := NewServer(testConfig(), &fakeStore{})

	body, contentType := multipartUpload(t, "file", "a.txt", []byte("%PDF-1.4"))
	rec := postUpload(srv, body, contentType)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only PDF files are allowed", decodeError(t, rec))
}

func TestHandleUpload_RejectsSpoofedContent(t *testing.T) {
	srv := NewServer(testConfig(), &fakeStore{})

	body, contentType := multipartUpload(t, "file", "a.pdf", []byte("MZ executable"))
	rec := postUpload(srv, body, contentType)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File is not a valid PDF", decodeError(t, rec))
}

func TestHandleUpload_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxSize = 1024 * 1024
	srv := NewServer(cfg, &fakeStore{})

	content := append([]byte("%PDF-1.4"), make([]byte, 1024*1024)...)
	body, contentType := multipartUpload(t, "file", "big.pdf", content)
	rec := postUpload(srv, body, contentType)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "File size exceeds 1MB limit", decodeError(t, rec))
}

func TestProcessUpload_FileTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxSize = 1024 * 1024
	srv := NewServer(cfg, &fakeStore{})

	// Calling the pipeline directly bypasses the transport cap, so the
	// handler-level size check answers.
	content := append([]byte("%PDF-1.4"), make([]byte, 1024*1024)...)
	_, err := srv.processUpload(context.Background(), bytes.NewReader(content), "big.pdf")

	var apiErr *UploadError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "File size exceeds 1MB limit", apiErr.Message)
}

func TestProcessUpload_NoFilenameSelected(t *testing.T) {
	srv := NewServer(testConfig(), &fakeStore{})

	_, err := srv.processUpload(context.Background(), bytes.NewReader([]byte("%PDF-1.4")), "")

	var apiErr *UploadError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "No file selected", apiErr.Message)
}

func TestProcessUpload_StripsPathComponents(t *testing.T) {
	store := &fakeStore{}
	srv := NewServer(testConfig(), store)

	result, err := srv.processUpload(context.Background(),
		bytes.NewReader([]byte("%PDF-1.4")), "../../etc/passwd.pdf")
	require.NoError(t, err)

	assert.Equal(t, "etc_passwd.pdf", result.Filename)
	assert.True(t, strings.HasSuffix(result.S3Key, "_etc_passwd.pdf"))
}

func TestHandleUpload_BucketNotConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.AWS.Bucket = ""
	srv := NewServer(cfg, &fakeStore{})

	body, contentType := multipartUpload(t, "file", "a.pdf", []byte("%PDF-1.4"))
	rec := postUpload(srv, body, contentType)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "S3 bucket not configured", decodeError(t, rec))
}

func TestHandleUpload_StoreNotInitialized(t *testing.T) {
	srv := NewServer(testConfig(), nil)

	body, contentType := multipartUpload(t, "file", "a.pdf", []byte("%PDF-1.4"))
	rec := postUpload(srv, body, contentType)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to initialize S3 client", decodeError(t, rec))
}

func TestHandleUpload_StoreFailures(t *testing.T) {
	tests := []struct {
		name        string
		putErr      error
		wantMessage string
	}{
		{
			name:        "bucket does not exist",
			putErr:      &storage.OpError{Op: "PutObject", Code: "NoSuchBucket", Err: storage.ErrBucketNotFound},
			wantMessage: "S3 bucket does not exist",
		},
		{
			name:        "credentials missing",
			putErr:      &storage.OpError{Op: "PutObject", Code: "NoCredentialProviders", Err: storage.ErrCredentialsMissing},
			wantMessage: "AWS credentials not found",
		},
		{
			name:        "api error keeps its code",
			putErr:      &storage.OpError{Op: "PutObject", Code: "AccessDenied", Err: errors.New("access denied")},
			wantMessage: "S3 error: AccessDenied",
		},
		{
			name:        "transport error",
			putErr:      errors.New("connection reset by peer"),
			wantMessage: "Upload failed: connection reset by peer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(testConfig(), &fakeStore{putErr: tt.putErr})

			body, contentType := multipartUpload(t, "file", "a.pdf", []byte("%PDF-1.4"))
			rec := postUpload(srv, body, contentType)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, tt.wantMessage, decodeError(t, rec))
		})
	}
}

func TestHandleUpload_PresignFailureIsNonFatal(t *testing.T) {
	store := &fakeStore{presignErr: errors.New("signing unavailable")}
	srv := NewServer(testConfig(), store)

	body, contentType := multipartUpload(t, "file", "a.pdf", []byte("%PDF-1.4"))
	rec := postUpload(srv, body, contentType)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"presigned_url":null`)

	var result UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Nil(t, result.PresignedURL)
	assert.Equal(t, "File uploaded successfully", result.Message)
	require.Len(t, store.puts, 1)
}

func TestHandleUpload_DistinctKeysForSameFilename(t *testing.T) {
	store := &fakeStore{}
	srv := NewServer(testConfig(), store)

	for i := 0; i < 2; i++ {
		body, contentType := multipartUpload(t, "file", "report.pdf", []byte("%PDF-1.4"))
		rec := postUpload(srv, body, contentType)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	require.Len(t, store.puts, 2)
	assert.NotEqual(t, store.puts[0].key, store.puts[1].key)
	assert.True(t, strings.HasSuffix(store.puts[0].key, "_report.pdf"))
	assert.True(t, strings.HasSuffix(store.puts[1].key, "_report.pdf"))
}

func TestHandleUpload_SanitizesFilename(t *testing.T) {
	// Path directories are already stripped by the multipart parser;
	// these cover what survives it.
	tests := []struct {
		name         string
		filename     string
		wantFilename string
	}{
		{"spaces", "my report final.pdf", "my_report_final.pdf"},
		{"windows path", `..\..\secret.pdf`, "secret.pdf"},
		{"shell characters", "in;voi`ce$.pdf", "invoice.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			srv := NewServer(testConfig(), store)

			body, contentType := multipartUpload(t, "file", tt.filename, []byte("%PDF-1.4"))
			rec := postUpload(srv, body, contentType)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var result UploadResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
			assert.Equal(t, tt.wantFilename, result.Filename)
			assert.True(t, strings.HasSuffix(result.S3Key, "_"+tt.wantFilename))

			require.Len(t, store.puts, 1)
			assert.Equal(t, tt.wantFilename, store.puts[0].metadata["original_filename"])
		})
	}
}
