// Package server exposes the reasoner over HTTP.
//
// Routes:
//
//	POST /v1/reason        evaluate one scene
//	POST /v1/reason/batch  evaluate a scene file document
//	GET  /v1/rules         compiled rule base summary
//	GET  /v1/results       query stored results
//	GET  /health, /ready, /version
//	GET  /metrics
//
// Every request gets an X-Request-ID, is logged on completion and recovers
// from handler panics. When API keys are configured the /v1 routes require
// one, as "Authorization: Bearer <key>" or X-API-Key. TLS, with optional
// client certificates, is enabled through config.TLSConfig. Reloader keeps
// the engine's rule base in step with its source while the server runs.
package server
