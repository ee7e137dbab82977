package gateway

import (
	"bytes"
	"io"
	"testing"
)

func TestInspectPayload(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		wantPDF  bool
		wantSize int64
	}{
		{"valid pdf", []byte("%PDF-1.4\n1 0 obj"), true, 16},
		{"magic only", []byte("%PDF"), true, 4},
		{"wrong magic", []byte("PK\x03\x04zipfile"), false, 11},
		{"magic not at start", []byte(" %PDF-1.4"), false, 9},
		{"shorter than magic", []byte("%P"), false, 2},
		{"empty stream", []byte{}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := bytes.NewReader(tt.content)

			info, err := inspectPayload(stream)
			if err != nil {
				t.Fatalf("inspectPayload failed: %v", err)
			}

			if info.IsPDF != tt.wantPDF {
				t.Errorf("IsPDF = %v, want %v", info.IsPDF, tt.wantPDF)
			}

			if info.Size != tt.wantSize {
				t.Errorf("Size = %d, want %d", info.Size, tt.wantSize)
			}

			// The stream must be rewound so the store call sees the
			// whole payload.
			rest, err := io.ReadAll(stream)
			if err != nil {
				t.Fatalf("reading stream after inspect: %v", err)
			}
			if !bytes.Equal(rest, tt.content) {
				t.Errorf("stream not rewound: got %d bytes, want %d", len(rest), len(tt.content))
			}
		})
	}
}
