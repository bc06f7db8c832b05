package models

// RawComplaint is an unassigned complaint as read from storage, before the
// codec has decoded its embedding and keyword payloads. Embedding and
// Keywords carry whatever serialized form the normalization service wrote.
type RawComplaint struct {
	Embedding       string
	Keywords        string
	CoreRequest     string
	ID              int64
	ReceivedAtEpoch int64
}

// Complaint is a decoded complaint, valid for a single clustering cycle.
type Complaint struct {
	Keywords        map[string]bool
	CoreRequest     string
	Vector          []float32
	ID              int64
	ReceivedAtEpoch int64
	// Degraded is set when the embedding or keyword payload failed to
	// decode and a safe fallback value was substituted.
	Degraded bool
}

// Assignment records the outcome of matching one complaint to an incident,
// including the incident-side updates that must commit in the same
// transaction as the complaint's incident reference.
type Assignment struct {
	// Centroid is the recomputed anchored mean. Nil when the incident has
	// reached its anchor limit and the centroid must not move.
	Centroid JSONFloat32Array
	// Keywords is the merged representative keyword set. Nil when the
	// centroid is anchored.
	Keywords          JSONStringArray
	ComplaintID       int64
	IncidentID        int64
	ComplaintCount    int
	AnchorCount       int
	LastOccurredEpoch int64
}
