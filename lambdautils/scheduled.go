package lambdautils

import (
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
)

const (
	scheduledEventSource     = "aws.events"
	scheduledEventDetailType = "Scheduled Event"
)

// IsScheduledEvent returns the decoded event and true when payload is an
// eventbridge (cloudwatch events) scheduled rule invocation.
func IsScheduledEvent(payload []byte) (events.CloudWatchEvent, bool) {
	var event events.CloudWatchEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return events.CloudWatchEvent{}, false
	}

	if event.Source != scheduledEventSource || event.DetailType != scheduledEventDetailType {
		return events.CloudWatchEvent{}, false
	}

	return event, true
}
