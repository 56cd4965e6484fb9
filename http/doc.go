// Package http exposes the asset service over a JSON REST API.
//
// All asset routes live under /api/v1/assets and require a session. The
// session ID is read from the "sessionId" cookie or from an
// "Authorization: Bearer" header and resolved through a session.Store:
//
//	POST   /api/v1/assets/upload       multipart "file" part
//	GET    /api/v1/assets/user         assets visible to the caller
//	PUT    /api/v1/assets/file/{id}    replace content
//	DELETE /api/v1/assets/{assetId}
//	POST   /api/v1/assets/share/{id}   {"sharedWithUserId": "..."}
//	GET    /api/v1/assets/shared       assets shared with the caller
//	GET    /api/v1/assets/shared/{id}
//
// Every response carries a message, a success flag and the status code.
// Service errors are mapped by HandleError; storage failures surface as
// 502 and unknown errors as 500 without leaking details.
//
// When HandlerConfig.Files is set the handler also serves objects of a
// local blob store under /files/{key}.
//
// Usage:
//
//	h := http.NewHandler(&http.HandlerConfig{Sessions: sessions}, service)
//	srv := &nethttp.Server{Addr: ":5000", Handler: h.Router()}
package http
