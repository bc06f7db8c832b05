package gorm

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/civicroute/incidentd/pkg/models"
)

// IncidentStore provides the read and write operations the clustering
// engine needs. All writes are transactional per call; idempotency comes
// from guarding every assignment on "incident reference is still null".
type IncidentStore struct {
	db *gorm.DB
}

// NewIncidentStore creates an IncidentStore.
func NewIncidentStore(store *Store) *IncidentStore {
	return &IncidentStore{db: store.DB}
}

// OpenIncidents returns every incident whose status is not CLOSED, in a
// stable order.
func (s *IncidentStore) OpenIncidents(ctx context.Context) ([]*models.Incident, error) {
	var rows []Incident
	err := s.db.WithContext(ctx).
		Where("status <> ?", models.IncidentClosed).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*models.Incident, len(rows))
	for i := range rows {
		out[i] = toModelIncident(&rows[i])
	}
	return out, nil
}

// ExistingTitles returns the titles of all incidents, open or closed.
// Title uniqueness must hold across everything a clustering pass can see.
func (s *IncidentStore) ExistingTitles(ctx context.Context) ([]string, error) {
	var titles []string
	err := s.db.WithContext(ctx).
		Model(&Incident{}).
		Pluck("title", &titles).Error
	return titles, err
}

// PendingComplaints returns unassigned complaints with a ready embedding,
// joined to their normalization row, ordered by receipt time so repeated
// runs make the same decisions.
func (s *IncidentStore) PendingComplaints(ctx context.Context) ([]models.RawComplaint, error) {
	var rows []struct {
		ID              int64
		ReceivedAtEpoch int64
		Embedding       sql.NullString
		Keywords        sql.NullString
		CoreRequest     sql.NullString
	}
	err := s.db.WithContext(ctx).
		Table("complaints AS c").
		Select("c.id, c.received_at_epoch, n.embedding, n.keywords, n.core_request").
		Joins("JOIN complaint_normalizations n ON n.complaint_id = c.id").
		Where("c.incident_id IS NULL AND n.embedding IS NOT NULL").
		Order("c.received_at_epoch ASC, c.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.RawComplaint, len(rows))
	for i, r := range rows {
		out[i] = models.RawComplaint{
			ID:              r.ID,
			ReceivedAtEpoch: r.ReceivedAtEpoch,
			Embedding:       r.Embedding.String,
			Keywords:        r.Keywords.String,
			CoreRequest:     r.CoreRequest.String,
		}
	}
	return out, nil
}

// CountPending counts unassigned complaints with a ready embedding. Cheap
// probe used by the scheduler to stay idle.
func (s *IncidentStore) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table("complaints AS c").
		Joins("JOIN complaint_normalizations n ON n.complaint_id = c.id").
		Where("c.incident_id IS NULL AND n.embedding IS NOT NULL").
		Count(&count).Error
	return count, err
}

// AssignComplaint sets the complaint's incident reference and applies the
// incident-side updates in one transaction. Returns false without touching
// the incident when the complaint was already assigned.
func (s *IncidentStore) AssignComplaint(ctx context.Context, a models.Assignment) (bool, error) {
	assigned := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Complaint{}).
			Where("id = ? AND incident_id IS NULL", a.ComplaintID).
			Update("incident_id", a.IncidentID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // already assigned, idempotent no-op
		}
		assigned = true

		updates := map[string]interface{}{
			"complaint_count":     a.ComplaintCount,
			"last_occurred_epoch": a.LastOccurredEpoch,
		}
		if a.Centroid != nil {
			updates["centroid"] = a.Centroid
			updates["keywords"] = a.Keywords
			updates["anchor_count"] = a.AnchorCount
		}
		return tx.Model(&Incident{}).
			Where("id = ?", a.IncidentID).
			Updates(updates).Error
	})
	return assigned, err
}

// CreateIncident inserts the incident and bulk-assigns its member
// complaints' incident references in one transaction. Members already
// assigned elsewhere are left untouched.
func (s *IncidentStore) CreateIncident(ctx context.Context, inc *models.Incident, memberIDs []int64) (int64, error) {
	row := Incident{
		Title:             inc.Title,
		Status:            inc.Status,
		Centroid:          inc.Centroid,
		Keywords:          inc.Keywords,
		ComplaintCount:    inc.ComplaintCount,
		AnchorCount:       inc.AnchorCount,
		OpenedAtEpoch:     inc.OpenedAtEpoch,
		LastOccurredEpoch: inc.LastOccurredEpoch,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if len(memberIDs) == 0 {
			return nil
		}
		return tx.Model(&Complaint{}).
			Where("id IN ? AND incident_id IS NULL", memberIDs).
			Update("incident_id", row.ID).Error
	})
	if err != nil {
		return 0, err
	}
	inc.ID = row.ID
	return row.ID, nil
}

// IsDuplicateTitle reports whether err is a unique violation on the
// incident title index. GORM's TranslateError covers both dialects; the
// pgconn check keeps the raw Postgres SQLSTATE path working when error
// translation is bypassed.
func (s *IncidentStore) IsDuplicateTitle(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Ping verifies the database connection is alive.
func (s *IncidentStore) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// DashboardStats returns store-level counters for the ops endpoint.
func (s *IncidentStore) DashboardStats(ctx context.Context) (models.StoreStats, error) {
	var stats models.StoreStats
	db := s.db.WithContext(ctx)

	if err := db.Model(&Incident{}).Count(&stats.TotalIncidents).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&Incident{}).
		Where("status <> ?", models.IncidentClosed).
		Count(&stats.OpenIncidents).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&Complaint{}).
		Where("incident_id IS NOT NULL").
		Count(&stats.AssignedComplaints).Error; err != nil {
		return stats, err
	}
	var err error
	stats.PendingComplaints, err = s.CountPending(ctx)
	return stats, err
}
