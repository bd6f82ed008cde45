// Package eventloop runs all client callbacks on a single goroutine.
//
// Socket events and timer firings are posted to a Loop and executed one at a
// time, so the state they touch needs no locking. Timers are revocable
// handles; a Timers group lets an owner cancel everything it scheduled in one
// call.
//
// Runner is the production loop. Manual is a virtual-clock loop for tests.
package eventloop
