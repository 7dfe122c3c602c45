// Package execevent defines the execution events emitted by the multi-module
// build tool, the listener contract that consumes them, and the NDJSON wire
// format used to carry them out of the tool's process.
package execevent
