// Package build hosts a bridged build: it wires module proxies and the
// reporter chain to a launched build tool, waits for asynchronous reporter
// work and decides the overall result.
//
// All execution paths (run, replay, tests) route through BuildService.
package build
