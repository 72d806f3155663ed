// Package treated persists treated markers: out-of-band annotations
// recording that a human has already acted on a certificate. Markers
// live independently of the canonical collection and are only used to
// filter it post hoc.
package treated

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Marker annotates one certificate as handled.
type Marker struct {
	CertificateID string    `json:"id"`
	SerialNumber  string    `json:"serial_number"`
	TreatedAt     time.Time `json:"treated_at"`
	TreatedBy     string    `json:"treated_by,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// Store is the marker persistence interface consumed by the API
// layer. The query engine itself only ever sees the identifier set.
type Store interface {
	Save(ctx context.Context, marker *Marker) error
	Get(ctx context.Context, certificateID string) (*Marker, error)
	Delete(ctx context.Context, certificateID string) error
	List(ctx context.Context) ([]*Marker, error)
	IdentifierSet(ctx context.Context) (map[string]struct{}, error)
}

// ErrNotFound is returned when no marker exists for an identifier.
var ErrNotFound = errors.New("treated marker not found")

// markerDBModel is the GORM persistence model.
type markerDBModel struct {
	ID            uint   `gorm:"primarykey"`
	CertificateID string `gorm:"uniqueIndex"`
	SerialNumber  string `gorm:"index"`
	TreatedAt     time.Time
	TreatedBy     string
	Notes         string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (markerDBModel) TableName() string {
	return "treated_markers"
}

// DBStore is the database-backed marker store.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore creates the store and migrates its table.
func NewDBStore(db *gorm.DB) (*DBStore, error) {
	if err := db.AutoMigrate(&markerDBModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate treated_markers table: %w", err)
	}

	return &DBStore{db: db}, nil
}

// Save inserts or updates the marker for a certificate. Marking an
// already-treated certificate again replaces the previous annotation.
func (s *DBStore) Save(ctx context.Context, marker *Marker) error {
	if marker.CertificateID == "" {
		return fmt.Errorf("marker certificate id is required")
	}
	if marker.TreatedAt.IsZero() {
		marker.TreatedAt = time.Now()
	}

	var existing markerDBModel
	result := s.db.WithContext(ctx).Where("certificate_id = ?", marker.CertificateID).First(&existing)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup marker: %w", result.Error)
	}

	model := toDBModel(marker)
	if result.Error == nil {
		model.ID = existing.ID
		model.CreatedAt = existing.CreatedAt
	}

	if err := s.db.WithContext(ctx).Save(model).Error; err != nil {
		return fmt.Errorf("save marker: %w", err)
	}
	return nil
}

// Get returns the marker for a certificate, ErrNotFound otherwise.
func (s *DBStore) Get(ctx context.Context, certificateID string) (*Marker, error) {
	var model markerDBModel
	result := s.db.WithContext(ctx).Where("certificate_id = ?", certificateID).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get marker: %w", result.Error)
	}

	return fromDBModel(&model), nil
}

// Delete removes the marker for a certificate.
func (s *DBStore) Delete(ctx context.Context, certificateID string) error {
	result := s.db.WithContext(ctx).Where("certificate_id = ?", certificateID).Delete(&markerDBModel{})
	if result.Error != nil {
		return fmt.Errorf("delete marker: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all markers ordered by treatment time, newest first.
func (s *DBStore) List(ctx context.Context) ([]*Marker, error) {
	var models []markerDBModel
	if err := s.db.WithContext(ctx).Order("treated_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list markers: %w", err)
	}

	markers := make([]*Marker, 0, len(models))
	for i := range models {
		markers = append(markers, fromDBModel(&models[i]))
	}
	return markers, nil
}

// IdentifierSet projects the treated certificate identifiers as the
// exclusion set the query engine consumes.
func (s *DBStore) IdentifierSet(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&markerDBModel{}).Pluck("certificate_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list marker identifiers: %w", err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func toDBModel(marker *Marker) *markerDBModel {
	return &markerDBModel{
		CertificateID: marker.CertificateID,
		SerialNumber:  marker.SerialNumber,
		TreatedAt:     marker.TreatedAt,
		TreatedBy:     marker.TreatedBy,
		Notes:         marker.Notes,
	}
}

func fromDBModel(model *markerDBModel) *Marker {
	return &Marker{
		CertificateID: model.CertificateID,
		SerialNumber:  model.SerialNumber,
		TreatedAt:     model.TreatedAt,
		TreatedBy:     model.TreatedBy,
		Notes:         model.Notes,
	}
}
