// Package fetch performs the single network GET behind an image load. It never
// retries: a failed attempt is reported as an *HTTPStatusError for non-2xx
// responses or a *TransportError for everything else (DNS, connect, timeout,
// broken stream). Connect and response-header timeouts live on the shared
// http.Client; the read timeout is enforced here as an idle timer re-armed on
// every body read. When the shared verbose switch is on, full request and
// response dumps (headers and bodies) are logged.
package fetch
