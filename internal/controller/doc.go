// Package controller is the receiving side of networked build proxies. It
// consumes proxy mutations from a JetStream stream, records them in the event
// store and mirrors each module's state into a key-value bucket.
package controller
