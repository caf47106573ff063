// Package api exposes the HTTP interface for the audit service: session
// fan-out, progress polling, and result retrieval.
package api
