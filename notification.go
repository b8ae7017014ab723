package video_relay

// Notification is one outbound status message addressed to a recipient.
type Notification struct {
	Recipient string
	Text      string
}

// Sink accepts status notifications from the pipeline. Notify is fire-and-forget: an
// implementation must not block the caller and must swallow delivery problems (logging them
// at most), so a broken notification transport can never stall or fail a job.
type Sink interface {
	Notify(recipient string, text string)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(recipient string, text string)

func (f SinkFunc) Notify(recipient string, text string) {
	f(recipient, text)
}

// NopSink discards all notifications.
var NopSink Sink = SinkFunc(func(string, string) {})
