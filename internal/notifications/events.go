package notifications

// Event identifies a workflow milestone that can produce a push notification.
type Event string

const (
	EventDiscDetected            Event = "disc_detected"
	EventIdentificationCompleted Event = "identification_completed"
	EventRipStarted              Event = "rip_started"
	EventRipCompleted            Event = "rip_completed"
	EventEncodingCompleted       Event = "encoding_completed"
	EventOrganizationCompleted   Event = "organization_completed"
	EventProcessingCompleted     Event = "processing_completed"
	EventQueueStarted            Event = "queue_started"
	EventQueueCompleted          Event = "queue_completed"
	EventReviewRequired          Event = "review_required"
	EventError                   Event = "error"
	EventTest                    Event = "test"
)

// Payload carries event-specific values used when rendering the message body.
type Payload map[string]string
