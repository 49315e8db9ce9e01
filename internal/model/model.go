package model

// TimestampLayout is the naive local wall-clock format stored in `waktu`.
// Fixed width, so string order equals time order.
const TimestampLayout = "2006-01-02 15:04:05"

// StatusPresent is the only status this service writes.
const StatusPresent = "Hadir"

// Record is one row of the `absensi` table.
type Record struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"nama"`  // currently the scanned id; no identity lookup yet
	Timestamp string `json:"waktu"` // TimestampLayout, no offset
	Status    string `json:"status"`
}

// Filter narrows a select or count. Zero fields are not applied.
// From and To are inclusive bounds on Timestamp.
type Filter struct {
	UserID string
	From   string
	To     string
}
