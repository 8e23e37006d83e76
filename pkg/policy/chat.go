package policy

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/Sternrassler/uspolicy-client/pkg/client"
)

var (
	// ErrMissingMessage is returned when a chat request has no message.
	ErrMissingMessage = errors.New("chat message is required")

	// ErrMissingDocument is returned when a chat request names no document.
	ErrMissingDocument = errors.New("document id is required")
)

// ChatRequest asks a question about one document.
type ChatRequest struct {
	Message    string `json:"message"`
	DocumentID string `json:"documentId"`
}

// Validate checks that both fields are non-blank.
func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrMissingMessage
	}
	if strings.TrimSpace(r.DocumentID) == "" {
		return ErrMissingDocument
	}
	return nil
}

// ChatResponse carries the generated answer.
type ChatResponse struct {
	Response string `json:"response"`
}

// Chat validates req and posts it to the chat endpoint.
func Chat(ctx context.Context, c *client.Client, req ChatRequest, opts *client.RequestOptions) (*ChatResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := client.PostData[ChatResponse](ctx, c, ChatEndpoint, req, opts)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Message returns the backend's explanation carried by a rejected call, read
// from the "response" or "error" field of the body. It returns "" when err is
// not a *client.RequestError or the body has neither field.
func Message(err error) string {
	var reqErr *client.RequestError
	if !errors.As(err, &reqErr) || len(reqErr.Body) == 0 {
		return ""
	}

	var body struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if json.Unmarshal(reqErr.Body, &body) != nil {
		return ""
	}
	if body.Response != "" {
		return body.Response
	}
	return body.Error
}
