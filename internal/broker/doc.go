// Package broker owns the AMQP connection lifecycle and the wire formats
// exchanged over the two durable queues: task messages flowing from the
// gateway to the inference workers, and result messages flowing back.
package broker
