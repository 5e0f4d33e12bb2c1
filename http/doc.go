// Package http exposes stashbox over HTTP.
//
// Routes, mounted under HandlerConfig.BasePath (default /v1):
//
//	POST /      multipart upload, gated by the Authorization token
//	GET  /{id}  download with byte-range support
//
// plus /healthz and, when metrics are configured, /metrics at the root.
//
// # Responses
//
// Every JSON body uses the same envelope:
//
//	{"status": 200, "data": {"link": "https://files.example.com/v1/<id>.png"}}
//	{"status": 401, "message": "invalid token"}
//
// Errors are mapped once, in HandleError, from the stashbox sentinel errors.
// Details are logged; clients only see a generic message.
//
// # Downloads
//
// Identifiers that look like path traversal (.., %2F, %5C, backslash) get a
// 404 before any lookup. Everything else is resolved by the service and
// served with http.ServeContent, which handles Range, If-Range and
// conditional requests. A view event is recorded for every other request
// in the background.
//
// # Usage
//
//	handler := http.NewHandler(&http.HandlerConfig{
//	    PublicURL:     "https://files.example.com",
//	    BasePath:      "/v1",
//	    MaxUploadSize: 100 << 20,
//	}, service)
//	srv := &nethttp.Server{Addr: ":5708", Handler: handler.Router()}
package http
