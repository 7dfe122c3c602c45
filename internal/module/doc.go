// Package module defines the value types shared by every part of the bridge:
// module identity, build state and result, and step timing records.
package module
