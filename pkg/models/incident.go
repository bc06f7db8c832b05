package models

// Incident statuses. CLOSED incidents are excluded from matching; the
// transition to CLOSED is owned by an external workflow, never by incidentd.
const (
	IncidentOpen   = "OPEN"
	IncidentClosed = "CLOSED"
)

// Incident is a persisted cluster representing one recurring real-world
// issue, aggregating one or more complaints.
type Incident struct {
	Title  string
	Status string
	// Centroid is the anchored mean of the first AnchorCount member
	// embeddings. Once AnchorCount reaches the configured limit the
	// vector is frozen and only ComplaintCount keeps growing.
	Centroid JSONFloat32Array
	// Keywords is the bounded representative keyword set across members.
	Keywords          JSONStringArray
	ID                int64
	ComplaintCount    int
	AnchorCount       int
	OpenedAtEpoch     int64
	LastOccurredEpoch int64
}

// StoreStats is a snapshot of store-level counters for the ops endpoint.
type StoreStats struct {
	OpenIncidents      int64 `json:"open_incidents"`
	TotalIncidents     int64 `json:"total_incidents"`
	PendingComplaints  int64 `json:"pending_complaints"`
	AssignedComplaints int64 `json:"assigned_complaints"`
}
