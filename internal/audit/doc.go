// Package audit defines the core types shared across the analysis pipeline:
// analyzer identifiers, task payloads and lifecycle states, result shapes
// produced by the three scoring engines, and the small interfaces the
// orchestrator, workers, and read-side handlers depend on.
package audit
