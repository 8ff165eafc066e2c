// Package api dispatches JSON API methods over HTTP.
//
// A Method declares its parameters and rules as an apiparam.Definition.
// The server resolves them from the request before Process runs, so
// methods only see validated values:
//
//	GET|POST /api/{method}   call a method
//	GET      /api            list methods and their params
//	GET      /metrics        Prometheus metrics
//
// Every response uses the same envelope:
//
//	{"state": "success", "data": ...}
//	{"state": "error", "code": "validation_failed", "message": "...", "data": [...]}
package api
