package policy

import (
	"context"

	"github.com/Sternrassler/uspolicy-client/pkg/client"
)

// Backend endpoints.
const (
	DocumentsEndpoint = "/uspolicy/documents"
	ChatEndpoint      = "/uspolicy/chat"
)

// Document is a chat-able policy document.
type Document struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
}

// ListDocuments returns every document the backend knows about.
func ListDocuments(ctx context.Context, c *client.Client, opts *client.RequestOptions) ([]Document, error) {
	docs, err := client.FetchData[[]Document](ctx, c, DocumentsEndpoint, opts)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}
