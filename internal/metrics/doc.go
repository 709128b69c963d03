// Package metrics owns the process-local prometheus registry: load outcomes,
// fetch latency and the errors the loader absorbs. All recording methods are
// safe on a nil *Registry so components can run without metrics wired in.
package metrics
