// Package framer reassembles D0 telegrams from an arbitrarily chunked byte stream.
//
// This package is internal to smartmeter. A telegram starts with a single
// start byte ('/') and ends with a single end byte ('!'). Chunks delivered by
// the transport may split a telegram at any byte offset, carry several
// telegrams at once, or contain line noise between telegrams.
//
// The main components are:
//
//   - [Framer]: Stateful accumulator that turns chunks into completed frames
//   - [Frame]: One completed telegram, raw bytes plus ISO-8859-1 decoded text
//
// A Framer is owned by a single writer and is not safe for concurrent use.
package framer
