// Package transport delivers meter bytes to a receive-only [Handler].
//
// This package is internal to smartmeter and is the boundary between the
// physical link and the telegram core. It opens a byte source (a serial port
// or a serial-over-TCP bridge such as ser2net), reports the connection, pumps
// chunks of whatever size the link returns, and reports the disconnect with
// its reason. It never writes to the meter.
//
// The main components are:
//
//   - [Handler]: Receiver of connect, byte chunk and disconnect events
//   - [Opener]: Something that can open a byte source ([Serial], [TCP], [OpenerFunc])
//   - [Pump]: Runs one connection from open to disconnect
//   - [Supervisor]: Re-opens the source with exponential backoff until stopped
//
// Reconnection lives here rather than in the core: the core only ever sees
// one connect/bytes/disconnect sequence at a time.
package transport
