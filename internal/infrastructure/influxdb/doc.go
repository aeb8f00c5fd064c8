// Package influxdb provides the time-series client behind the InfluxDB
// result sink.
//
// Each merged batch produces one point per tag in the opc_reads
// measurement, tagged by tag name and quality. Writes go through the
// non-blocking batched WriteAPI; async write failures surface through
// the SetOnError callback and never interrupt the polling loop.
package influxdb
