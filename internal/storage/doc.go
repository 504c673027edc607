// Package storage defines the persistence contracts for campaign
// state. Implementations live in subpackages; the engine depends only
// on these interfaces.
package storage
