// Package live runs one client session against a quote channel.
//
// A Session wires the event loop, lifecycle guard, quote store, flash
// scheduler and connection manager together. Every update is reconciled on
// the loop: the store merges it, the scheduler flashes the direction and an
// optional recorder receives the merged quote. Readers on other goroutines
// see published state through the store and scheduler.
package live
