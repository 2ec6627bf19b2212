package eventlog

// TopicAppend carries every appended event on the bus. Subscribers include
// the JSON persister and the dashboard websocket hub.
const TopicAppend = "eventlog:append"

// Event types, named stage:outcome.
const (
	EventCaptureOK           = "capture:ok"
	EventCaptureFailed       = "capture:failed"
	EventGateNoPerson        = "fast_gate:no_person"
	EventGatePerson          = "fast_gate:person"
	EventImageSaved          = "image:saved"
	EventPersonConfirmed     = "detection:person_confirmed"
	EventPersonNotConfirmed  = "detection:person_not_confirmed"
	EventConfirmationError   = "confirmation:error"
	EventNotificationSuccess = "notification:success"
	EventNotificationFailure = "notification:failure"
	EventSystemStarted       = "system:started"
	EventSystemStopping      = "system:stopping"
)
