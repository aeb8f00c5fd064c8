package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTagValue records one polled tag value in the opc_reads measurement.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Non-numeric values are not written here; callers skip them.
//
// Parameters:
//   - tag: The data-access item name (e.g., "FIC101_PV.CV")
//   - value: The numeric value read from the server
//   - quality: The quality string reported alongside the value (e.g., "Good")
//
// Example:
//
//	client.WriteTagValue("FIC101_PV.CV", 42.5, "Good")
func (c *Client) WriteTagValue(tag string, value float64, quality string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"opc_reads",
		map[string]string{
			"tag":     tag,
			"quality": quality,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteTagValueAt records a tag value with the server-reported timestamp
// instead of the local wall clock.
//
// Parameters:
//   - tag: The data-access item name
//   - value: The numeric value read from the server
//   - quality: The quality string reported alongside the value
//   - timestamp: The server-reported read time
func (c *Client) WriteTagValueAt(tag string, value float64, quality string, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"opc_reads",
		map[string]string{
			"tag":     tag,
			"quality": quality,
		},
		map[string]interface{}{
			"value": value,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}
