// Package store holds the latest value of every meter address.
//
// This package is internal to smartmeter and manages the in-memory table of
// readings decoded from telegrams. It also implements a publish-subscribe
// pattern so connected dashboard clients see values as they are applied.
//
// The main components are:
//
//   - [Store]: Interface defining lookup, batch apply and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Value]: Storage representation of one address's latest reading
//
// A frame's measurements are applied as one batch under a single write lock,
// so readers never observe a half-applied frame. Subscribers receive updates
// via channels with non-blocking sends (slow subscribers will miss updates
// rather than block the ingest path).
//
// Users of the smartmeter library should not need to interact with this
// package directly. Storage is managed internally by smartmeter.Meter.
package store
