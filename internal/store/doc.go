// Package store provides the durable dedup cursor store.
//
// The store persists one cursor per account (last delivered timestamp plus
// record id) in a JSON file inside the data directory. Every commit is
// written through to disk immediately, since at-most-once delivery across
// restarts is the system's core correctness property. A missing file simply
// means every account starts from its configured start date.
package store
