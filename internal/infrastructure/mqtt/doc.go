// Package mqtt provides the publish-only broker client behind the MQTT
// result sink.
//
// The poller never subscribes: each merged batch is published one
// message per tag under opcburst/reads/<tag>, carrying the normalized
// value, quality, and timestamp as JSON. Broker outages are recoverable
// from the loop's point of view; a failed publish is logged and the run
// continues.
package mqtt
