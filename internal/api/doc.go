// Package api serves the plate pipeline over HTTP with gin.
//
// Routes:
//
//	GET  /healthz                       liveness and recogniser info
//	POST /api/v1/plates/recognize       read the plates in a base64 image
//	POST /api/v1/plates/consolidate     consolidate caller-supplied fragments
//	POST /api/v1/jobs                   queue images for the worker
//	GET  /api/v1/jobs/:id               fetch a queued job's result
//	GET  /api/v1/readings?limit=N       recent stored readings
//
// The job and reading routes answer 503 when no queue or store is wired.
package api
