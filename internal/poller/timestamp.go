package poller

import (
	"time"

	"github.com/controlsdev/opcburst/internal/opc"
)

// DisplayTimestampLayout is the layout written into the tag file:
// day-month-four-digit-year with 12-hour time and meridiem indicator.
const DisplayTimestampLayout = "02-01-2006 03:04:05 PM"

// NormalizeTimestamp converts a server-reported sample time from the
// source layout (opc.TimestampLayout) to the display layout.
//
// Strings that do not match the source layout are returned unchanged, so
// the result is best effort and not guaranteed machine-parseable.
//
// Parameters:
//   - raw: Sample time string as reported by the server
//
// Returns:
//   - string: Display-formatted timestamp, or raw if it does not parse
func NormalizeTimestamp(raw string) string {
	t, err := time.Parse(opc.TimestampLayout, raw)
	if err != nil {
		return raw
	}
	return t.Format(DisplayTimestampLayout)
}
