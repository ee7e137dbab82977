package gateway

import (
	"bytes"
	"errors"
	"io"
)

var pdfMagic = []byte("%PDF")

// PayloadInfo describes an inspected upload stream.
type PayloadInfo struct {
	IsPDF bool
	Size  int64
}

// inspectPayload sniffs the magic header and measures the stream in a
// single pass, rewinding to the start afterward so the stream can be
// handed to the store as-is. Combining both reads here keeps the seek
// bookkeeping in one place.
func inspectPayload(stream io.ReadSeeker) (PayloadInfo, error) {
	var info PayloadInfo

	header := make([]byte, len(pdfMagic))
	_, err := io.ReadFull(stream, header)
	switch {
	case err == nil:
		info.IsPDF = bytes.Equal(header, pdfMagic)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		// Shorter than the magic header, cannot be a PDF.
	default:
		return info, err
	}

	size, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return info, err
	}
	info.Size = size

	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return info, err
	}

	return info, nil
}
