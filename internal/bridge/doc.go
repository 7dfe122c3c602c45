// Package bridge turns the build tool's execution events into per-module
// build lifecycles.
//
// For every event the bridge updates step timing, calls the module's build
// proxy and notifies the module's reporters. Proxy and reporter failures are
// logged and never stop event processing. Modules the bridge has no proxy or
// reporters for are ignored.
//
// Forked project builds of a module that is already building nest: the proxy
// is started by the outermost start and closed by the matching outermost end,
// while reporters see every level. A failure at any level fails the module.
package bridge
