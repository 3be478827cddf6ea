// Package publish forwards meter readings to a message broker.
//
// A [Publisher] sits behind a meter update listener: Enqueue is non-blocking
// and drops when the queue is full, and a single background goroutine
// encodes each snapshot as an [Envelope] and hands it to a [Sender].
// [Client] is the Sender for MQTT (paho) and Kafka (kafka-go) brokers.
package publish
