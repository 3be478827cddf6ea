// Package notify fans out "new readings available" signals to observers.
//
// Observers are zero-argument callbacks held in registration order. A newly
// registered observer is invoked once immediately, so a late subscriber
// learns that current state exists even if it missed every earlier frame.
//
// A panicking observer is recovered and logged with a correlation ID; the
// remaining observers are still invoked.
package notify
