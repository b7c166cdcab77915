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

	"github.com/google/go-cmp/cmp"
	"github.com/mastermechanic/mmserver/models"
	"github.com/mastermechanic/mmserver/rag"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeRetriever struct {
	rendered  string
	matches   []rag.Match
	err       error
	query     string
	namespace string
	calls     int
}

func (fr *fakeRetriever) Retrieve(ctx context.Context, query, namespace string) (string, []rag.Match, error) {
	fr.calls++
	fr.query, fr.namespace = query, namespace
	return fr.rendered, fr.matches, fr.err
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name              string
		retriever         *fakeRetriever
		body              string
		expectedStatus    int
		expectedResponse  models.ContextPostResponse
		expectedNamespace string
		expectedCalls     int
	}{
		{
			name: "returns the rendered context and matches",
			retriever: &fakeRetriever{
				rendered: "Problem: P\nSolution: S\n",
				matches:  []rag.Match{{ID: "kb-1", Metadata: map[string]any{"problem": "P", "solution": "S"}, Score: 0.9}},
			},
			body:           `{"text":"compressor hums","namespace":"rtu"}`,
			expectedStatus: http.StatusOK,
			expectedResponse: models.ContextPostResponse{
				Context: "Problem: P\nSolution: S\n",
				Matches: []rag.Match{{ID: "kb-1", Metadata: map[string]any{"problem": "P", "solution": "S"}, Score: 0.9}},
			},
			expectedNamespace: "rtu",
			expectedCalls:     1,
		},
		{
			name:             "empty text returns an empty context",
			retriever:        &fakeRetriever{},
			body:             `{"text":""}`,
			expectedStatus:   http.StatusOK,
			expectedResponse: models.ContextPostResponse{Matches: []rag.Match{}},
		},
		{
			name:             "an absent index returns an empty context",
			retriever:        &fakeRetriever{},
			body:             `{"text":"compressor hums"}`,
			expectedStatus:   http.StatusOK,
			expectedResponse: models.ContextPostResponse{Matches: []rag.Match{}},
			expectedCalls:    1,
		},
		{
			name:           "retrieval errors return 502",
			retriever:      &fakeRetriever{err: errors.New("index unavailable")},
			body:           `{"text":"compressor hums"}`,
			expectedStatus: http.StatusBadGateway,
			expectedCalls:  1,
		},
		{
			name:           "invalid JSON returns 400",
			retriever:      &fakeRetriever{},
			body:           `{`,
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/context", bytes.NewBufferString(tt.body))
			New(discardLogger, tt.retriever).ServeHTTP(w, r)
			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.retriever.calls != tt.expectedCalls {
				t.Errorf("expected %d retrieval calls, got %d", tt.expectedCalls, tt.retriever.calls)
			}
			if tt.retriever.namespace != tt.expectedNamespace {
				t.Errorf("expected namespace %q, got %q", tt.expectedNamespace, tt.retriever.namespace)
			}
			if w.Code != http.StatusOK {
				return
			}
			var actual models.ContextPostResponse
			if err := json.Unmarshal(w.Body.Bytes(), &actual); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if diff := cmp.Diff(tt.expectedResponse, actual); diff != "" {
				t.Error(diff)
			}
		})
	}
}
