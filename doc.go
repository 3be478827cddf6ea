// Package smartmeter reads a utility meter's D0 optical interface
// (IEC 62056-21 push mode) and keeps a queryable table of its latest readings.
//
// A meter in push mode sends a telegram every few seconds:
//
//	/ESY5Q3DA1024 V3.04
//
//	1-0:0.0.0*255(1ESY1161181234)
//	1-0:1.8.0*255(00012345.6789*kWh)
//	1-0:16.7.0*255(000230.50*W)
//	!
//
// A [Meter] reassembles telegrams from arbitrarily chunked bytes, parses each
// data line into an address, value and unit, stores the latest value per
// address and notifies update listeners once per telegram.
//
// # Quick Start
//
//	m, _ := smartmeter.New(smartmeter.WithAddresses("1-0:1.8.0*255", "1-0:16.7.0*255"))
//
//	m.AddUpdateListener(func() {
//	    if v, unit, ok := m.GetValue("1-0:16.7.0*255"); ok {
//	        fmt.Printf("power: %g %s\n", v, unit)
//	    }
//	})
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	m.Supervise(ctx, smartmeter.SerialSource("/dev/ttyUSB0", 9600), smartmeter.Backoff{})
//
// # Transport
//
// The meter does not own a connection. Anything that produces bytes can drive
// it through [Meter.OnConnect], [Meter.OnBytes] and [Meter.OnDisconnect].
// [Meter.Run] pumps a single [Source] connection; [Meter.Supervise]
// reconnects with exponential backoff. [SerialSource] opens a local read head
// and [TCPSource] a serial-over-TCP bridge such as ser2net.
//
// Disconnects are reported to handlers registered with
// [WithDisconnectHandler] as a [*DisconnectError]; the meter itself never
// stops or reconnects anything.
//
// # Telegram handling
//
//   - A '/' always starts a new telegram; a partial telegram before it is dropped.
//   - A '!' completes the telegram; lines are decoded as ISO-8859-1.
//   - Data lines look like ADDRESS(VALUE*UNIT). Lines without a value (e.g.
//     serial numbers) are skipped; lines with a non-numeric value are logged
//     at debug level and skipped. Neither aborts the telegram.
//   - All values of a telegram become visible to readers at once; if an
//     address repeats within one telegram, the last line wins.
//   - No checksum is verified.
//
// # Architecture
//
// The internal packages are:
//
//   - internal/framer: telegram reassembly from byte chunks
//   - internal/telegram: line parsing and telegram encoding
//   - internal/store: in-memory value table with pub/sub for real-time updates
//   - internal/notify: ordered observer hub with panic containment
//   - internal/transport: serial and TCP sources, read pump and reconnect supervisor
//   - internal/server: HTTP API and Server-Sent Events (see [Meter.ServeDashboard])
//   - internal/publish: MQTT and Kafka publishing of readings
//   - dashboard: embedded web UI assets
package smartmeter
