// Package operations coordinates report runs. The Manager imports the
// raw exports, drives the KPI pipeline, writes the Excel and CSV
// reports, and tracks each run's lifecycle so the HTTP surface can
// start, poll, and cancel runs while clients follow the event stream.
package operations
