// Package http is the transport layer of the report server. It mounts
// the run lifecycle API, the health probe, the websocket event stream,
// and the metrics endpoint behind the shared middleware chain.
package http
