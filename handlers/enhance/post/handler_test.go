package post

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mastermechanic/mmserver/models"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeEnhancer struct {
	output string
	err    error
	calls  int
}

func (fe *fakeEnhancer) Enhance(ctx context.Context, input string) (string, error) {
	fe.calls++
	return fe.output, fe.err
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name           string
		enhancer       *fakeEnhancer
		body           string
		expectedStatus int
		expectedOutput string
		expectedCalls  int
	}{
		{
			name:           "returns the enhanced prompt",
			enhancer:       &fakeEnhancer{output: "Why does my Carrier RTU compressor hum but not start?"},
			body:           `{"input":"rtu compressor hums no start"}`,
			expectedStatus: http.StatusOK,
			expectedOutput: "Why does my Carrier RTU compressor hum but not start?",
			expectedCalls:  1,
		},
		{
			name:           "short input returns 400",
			enhancer:       &fakeEnhancer{},
			body:           `{"input":"help me"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "provider errors return 502",
			enhancer:       &fakeEnhancer{err: errors.New("boom")},
			body:           `{"input":"rtu compressor hums no start"}`,
			expectedStatus: http.StatusBadGateway,
			expectedCalls:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/enhance", bytes.NewBufferString(tt.body))
			New(discardLogger, tt.enhancer).ServeHTTP(w, r)
			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.enhancer.calls != tt.expectedCalls {
				t.Errorf("expected %d calls, got %d", tt.expectedCalls, tt.enhancer.calls)
			}
			if w.Code != http.StatusOK {
				return
			}
			var resp models.EnhancePostResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Output != tt.expectedOutput {
				t.Errorf("expected %q, got %q", tt.expectedOutput, resp.Output)
			}
		})
	}
}
