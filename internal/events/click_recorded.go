package events

// ClickRecorded is emitted when a redirect visit has been durably recorded.
type ClickRecorded struct {
	EventID    string `json:"eventId"`
	ShortID    string `json:"shortId"`
	OccurredAt string `json:"occurredAt"`
}
