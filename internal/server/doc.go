// Package server hosts the Fiber HTTP front that exposes the image loader over
// HTTP, plus the shared upstream http.Client factory. The /image route bridges
// a loader Task to an HTTP response (the response writer plays the role of the
// result sink), attaching request IDs and the load outcome as headers.
// Diagnostics live in the routes subpackage; keep exports narrow and accept
// explicit dependencies.
package server
