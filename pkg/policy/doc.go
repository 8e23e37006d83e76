// Package policy wraps the document-chat backend resources on top of the
// API client facade.
//
// Two resources are exposed:
//
//   - GET  /uspolicy/documents lists the documents available for chat.
//   - POST /uspolicy/chat asks a question about one document.
//
// Both calls are unauthenticated by default, matching FetchData and PostData.
// Backend rejections surface as *client.RequestError; Message extracts the
// human-readable text the backend puts in the error body.
package policy
