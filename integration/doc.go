// Package integration holds the end-to-end suite for a running eventsource
// stack (service plus Kafka), normally started by the pipeline's
// startServices task. The tests are skipped unless EVENTSOURCE_IT=1.
//
// EVENTSOURCE_HOST and KAFKA_HOST override the service and broker addresses.
package integration
