package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Sternrassler/uspolicy-client/internal/testutil"
	"github.com/Sternrassler/uspolicy-client/pkg/client"
	"github.com/Sternrassler/uspolicy-client/pkg/session"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, mock *testutil.MockAPI) *client.Client {
	t.Helper()

	logger := zerolog.Nop()
	cfg := client.DefaultConfig(mock.URL(), session.StaticToken("tok"))
	cfg.Logger = &logger

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestListDocuments(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("GET /uspolicy/documents", testutil.NewJSONResponse(
		`[{"id":"p2025","title":"Project 2025","source_url":"https://example.com/p2025.pdf"}]`))

	docs, err := ListDocuments(context.Background(), newTestClient(t, mock), nil)
	if err != nil {
		t.Fatalf("ListDocuments() failed: %v", err)
	}

	want := Document{ID: "p2025", Title: "Project 2025", SourceURL: "https://example.com/p2025.pdf"}
	if len(docs) != 1 || docs[0] != want {
		t.Errorf("ListDocuments() = %+v, want [%+v]", docs, want)
	}

	req, _ := mock.LastRequest()
	if got := req.Header.Get("Authorization"); got != "" {
		t.Errorf("Authorization = %q, document listing is unauthenticated", got)
	}
}

func TestListDocuments_Empty(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/uspolicy/documents", testutil.NewJSONResponse(`null`))

	docs, err := ListDocuments(context.Background(), newTestClient(t, mock), nil)
	if err != nil {
		t.Fatalf("ListDocuments() failed: %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Errorf("ListDocuments() = %#v, want empty non-nil slice", docs)
	}
}

func TestListDocuments_BackendError(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/uspolicy/documents", testutil.NewErrorResponse(http.StatusInternalServerError, "table unavailable"))

	_, err := ListDocuments(context.Background(), newTestClient(t, mock), nil)
	if status, ok := client.StatusCode(err); !ok || status != http.StatusInternalServerError {
		t.Fatalf("error = %v, want RequestError 500", err)
	}
	if got := Message(err); got != "table unavailable" {
		t.Errorf("Message() = %q, want %q", got, "table unavailable")
	}
}

func TestChatRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     ChatRequest
		wantErr error
	}{
		{"valid", ChatRequest{Message: "what changes?", DocumentID: "p2025"}, nil},
		{"missing message", ChatRequest{DocumentID: "p2025"}, ErrMissingMessage},
		{"blank message", ChatRequest{Message: "   ", DocumentID: "p2025"}, ErrMissingMessage},
		{"missing document", ChatRequest{Message: "hi"}, ErrMissingDocument},
		{"both missing", ChatRequest{}, ErrMissingMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChat(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("POST /uspolicy/chat", testutil.NewJSONResponse(`{"response":"It restructures agencies.\nSource page numbers: 4, 9"}`))

	resp, err := Chat(context.Background(), newTestClient(t, mock), ChatRequest{Message: "summary?", DocumentID: "p2025"}, nil)
	if err != nil {
		t.Fatalf("Chat() failed: %v", err)
	}
	if resp.Response != "It restructures agencies.\nSource page numbers: 4, 9" {
		t.Errorf("Response = %q", resp.Response)
	}

	req, _ := mock.LastRequest()
	var sent map[string]string
	if err := json.Unmarshal(req.Body, &sent); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if sent["message"] != "summary?" || sent["documentId"] != "p2025" {
		t.Errorf("request body = %v", sent)
	}
}

func TestChat_ValidationSkipsBackend(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	_, err := Chat(context.Background(), newTestClient(t, mock), ChatRequest{Message: "hi"}, nil)
	if !errors.Is(err, ErrMissingDocument) {
		t.Errorf("Chat() error = %v, want ErrMissingDocument", err)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("invalid chat request reached the backend")
	}
}

func TestChat_NoResults(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("POST /uspolicy/chat", testutil.MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"response":"No results found for the given query and document ID."}`,
	})

	_, err := Chat(context.Background(), newTestClient(t, mock), ChatRequest{Message: "x", DocumentID: "y"}, nil)
	if status, ok := client.StatusCode(err); !ok || status != http.StatusNotFound {
		t.Fatalf("error = %v, want RequestError 404", err)
	}
	if got := Message(err); got != "No results found for the given query and document ID." {
		t.Errorf("Message() = %q", got)
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), ""},
		{"empty body", &client.RequestError{StatusCode: 500}, ""},
		{"non-json body", &client.RequestError{Body: []byte("<html>")}, ""},
		{"response field", &client.RequestError{Body: []byte(`{"response":"r"}`)}, "r"},
		{"error field", &client.RequestError{Body: []byte(`{"error":"e"}`)}, "e"},
		{"wrapped", fmt.Errorf("chat: %w", &client.RequestError{Body: []byte(`{"response":"w"}`)}), "w"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}
