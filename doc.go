// Package stashbox provides a token-gated binary object store.
//
// Clients upload a file with an access token and receive a stable,
// unguessable URL. Retrieval supports byte ranges so large media can be
// streamed and resumed, and every retrieval is recorded as a ViewEvent
// without delaying the response.
//
// # Key Components
//
//   - Service: upload and download pipelines over the repositories and storage
//   - TokenRepo, ObjectRepo, ViewRepo: persistence (see the database package)
//   - FileStorage: byte storage (see the filesystem and objectstore packages)
//
// # Example Usage
//
//	service, err := stashbox.NewService(tokens, objects, views, storage, stashbox.ServiceConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer service.Close()
//
//	token, err := service.Authorize(ctx, r.Header.Get("Authorization"))
//	obj, err := service.Upload(ctx, token, stashbox.Upload{
//	    Filename: "photo.png",
//	    Content:  part,
//	    BaseURL:  "https://files.example.com/v1",
//	})
//
// See the http package for the REST API and the client package for a Go
// client of it.
package stashbox
