// Package app assembles the report server from its parts and owns the
// serve-until-interrupted lifecycle.
package app
