package storage

import (
	"context"
	"fmt"

	"akta-archive/models"
)

// Stats summarizes the archive for the dashboard.
type Stats struct {
	TotalRecords int64                   `json:"totalRecords"`
	ByKecamatan  map[string]int64        `json:"byKecamatan"`
	Recent       []models.MarriageRecord `json:"recent"`
}

const recentLimit = 5

// Stats counts records in kecamatan (every district for "" or models.AllKecamatan).
// ByKecamatan always spans the whole archive.
func (s *Store) Stats(ctx context.Context, kecamatan string) (*Stats, error) {
	db := s.db.WithContext(ctx)
	st := &Stats{ByKecamatan: map[string]int64{}}

	if err := scopeKecamatan(db.Model(&models.MarriageRecord{}), kecamatan).Count(&st.TotalRecords).Error; err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	var rows []struct {
		Kecamatan string
		Count     int64
	}
	if err := db.Model(&models.MarriageRecord{}).
		Select("kecamatan, COUNT(*) AS count").
		Group("kecamatan").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count records by kecamatan: %w", err)
	}
	for _, r := range rows {
		st.ByKecamatan[r.Kecamatan] = r.Count
	}

	recent, err := s.ListRecords(ctx, ListFilter{Kecamatan: kecamatan, Limit: recentLimit})
	if err != nil {
		return nil, err
	}
	st.Recent = recent
	return st, nil
}
