package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the base for all opcburst topics.
const TopicPrefix = "opcburst"

// ReadTopic returns the publish topic for one tag's reading.
//
// MQTT treats '/', '+', and '#' as topic structure, so those characters
// in a tag name are replaced with '_'.
//
// Example: opcburst/reads/FIC101_PV.CV
func ReadTopic(tag string) string {
	sanitized := strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(tag)
	return fmt.Sprintf("%s/reads/%s", TopicPrefix, sanitized)
}
