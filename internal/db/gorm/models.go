package gorm

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/civicroute/incidentd/pkg/models"
)

// Complaint is a citizen complaint as ingested by the external intake
// pipeline. incidentd only ever writes its incident reference, exactly once.
type Complaint struct {
	ID              int64          `gorm:"primaryKey;autoIncrement"`
	ReceivedAt      string         `gorm:"not null"`
	ReceivedAtEpoch int64          `gorm:"index:idx_complaints_received;not null"`
	IncidentID      sql.NullInt64  `gorm:"index:idx_complaints_incident"`
}

func (Complaint) TableName() string { return "complaints" }

// BeforeCreate hook to ensure timestamps are set.
func (c *Complaint) BeforeCreate(tx *gorm.DB) error {
	if c.ReceivedAtEpoch == 0 {
		c.ReceivedAtEpoch = time.Now().UnixMilli()
	}
	if c.ReceivedAt == "" {
		c.ReceivedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// ComplaintNormalization carries the LLM normalization output for one
// complaint: embedding vector, keyword list, and a one-line core request.
// Owned by the normalization service; read-only here.
type ComplaintNormalization struct {
	ID          int64          `gorm:"primaryKey;autoIncrement"`
	ComplaintID int64          `gorm:"uniqueIndex:idx_normalizations_complaint;not null"`
	Embedding   sql.NullString `gorm:"type:text"`
	Keywords    sql.NullString `gorm:"type:text"`
	CoreRequest sql.NullString `gorm:"type:text"`
}

func (ComplaintNormalization) TableName() string { return "complaint_normalizations" }

// Incident is a persisted cluster of complaints about one recurring issue.
type Incident struct {
	ID                int64                   `gorm:"primaryKey;autoIncrement"`
	Title             string                  `gorm:"uniqueIndex:idx_incidents_title;not null"`
	Status            string                  `gorm:"type:text;check:status IN ('OPEN', 'CLOSED');default:'OPEN';index"`
	Centroid          models.JSONFloat32Array `gorm:"type:text"`
	Keywords          models.JSONStringArray  `gorm:"type:text"`
	ComplaintCount    int                     `gorm:"default:0"`
	AnchorCount       int                     `gorm:"default:0"`
	OpenedAt          string                  `gorm:"not null"`
	OpenedAtEpoch     int64                   `gorm:"index:idx_incidents_opened,sort:desc;not null"`
	LastOccurred      string                  `gorm:"not null"`
	LastOccurredEpoch int64                   `gorm:"not null"`
}

func (Incident) TableName() string { return "incidents" }

// BeforeCreate hook to ensure timestamps and defaults are set.
func (i *Incident) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if i.Status == "" {
		i.Status = models.IncidentOpen
	}
	if i.OpenedAtEpoch == 0 {
		i.OpenedAtEpoch = now.UnixMilli()
	}
	if i.OpenedAt == "" {
		i.OpenedAt = time.UnixMilli(i.OpenedAtEpoch).Format(time.RFC3339)
	}
	if i.LastOccurredEpoch == 0 {
		i.LastOccurredEpoch = i.OpenedAtEpoch
	}
	if i.LastOccurred == "" {
		i.LastOccurred = time.UnixMilli(i.LastOccurredEpoch).Format(time.RFC3339)
	}
	return nil
}

// toModelIncident converts a GORM Incident to the domain model.
func toModelIncident(i *Incident) *models.Incident {
	return &models.Incident{
		ID:                i.ID,
		Title:             i.Title,
		Status:            i.Status,
		Centroid:          i.Centroid,
		Keywords:          i.Keywords,
		ComplaintCount:    i.ComplaintCount,
		AnchorCount:       i.AnchorCount,
		OpenedAtEpoch:     i.OpenedAtEpoch,
		LastOccurredEpoch: i.LastOccurredEpoch,
	}
}
