package links

import "time"

// Visit is a single timestamped redirect resolution. Visits are owned by
// their Link and have no identity of their own.
type Visit struct {
	Timestamp time.Time `json:"timestamp"`
}

// Link binds a short identifier to the original URL and its visit history.
// ShortID and URL are immutable after creation; VisitHistory is append-only.
type Link struct {
	ID           string
	ShortID      string
	URL          string
	VisitHistory []Visit
	CreatedAt    time.Time
}

// Analytics is a read-side aggregation derived from a Link's visit history.
// It is computed on demand; no counters are persisted alongside the history.
type Analytics struct {
	ShortID           string    `json:"shortId"`
	OriginalURL       string    `json:"originalUrl"`
	CreatedAt         time.Time `json:"createdAt"`
	TotalClicks       int       `json:"totalClicks"`
	ClicksLast24Hours int       `json:"clicksLast24Hours"`
	ClicksLast7Days   int       `json:"clicksLast7Days"`
	VisitHistory      []Visit   `json:"visitHistory"`
}
