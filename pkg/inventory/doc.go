// Package inventory is the authoritative set of managed
// hosts, with address and labels, persisted to the key-value store.
package inventory
