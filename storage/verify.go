package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"akta-archive/integrity"
	"akta-archive/metrics"
	"akta-archive/models"
)

// VerificationStatus is the outcome of checking a fingerprint against the archive.
type VerificationStatus string

const (
	StatusSuccess  VerificationStatus = "SUCCESS"
	StatusTampered VerificationStatus = "TAMPERED"
	StatusNotFound VerificationStatus = "NOT_FOUND"
)

// Verification carries the outcome of VerifyByFingerprint. Record is set
// only on success.
type Verification struct {
	Status VerificationStatus
	Record *models.MarriageRecord
}

// VerifyByFingerprint looks up the record a verification link points at and
// re-derives its fingerprint. Only storage failures are returned as errors.
func (s *Store) VerifyByFingerprint(ctx context.Context, fp string) (*Verification, error) {
	if !integrity.IsFingerprint(fp) {
		metrics.ObserveVerification("public", "not_found")
		return &Verification{Status: StatusNotFound}, nil
	}

	rec, err := s.GetRecordByFingerprint(ctx, fp)
	if errors.Is(err, ErrNotFound) {
		metrics.ObserveVerification("public", "not_found")
		return &Verification{Status: StatusNotFound}, nil
	}
	if err != nil {
		return nil, err
	}

	if !rec.Verify() {
		metrics.ObserveVerification("public", "tampered")
		s.log.Warn("fingerprint mismatch", slog.String("id", rec.ID), slog.String("fingerprint", fp))
		return &Verification{Status: StatusTampered}, nil
	}
	metrics.ObserveVerification("public", "verified")
	return &Verification{Status: StatusSuccess, Record: rec}, nil
}

// VerifyRecords checks a loaded batch and returns the outcome per record ID.
func VerifyRecords(ctx context.Context, records []models.MarriageRecord) map[string]bool {
	sealed := make([]integrity.Record, len(records))
	for i := range records {
		sealed[i] = records[i].Sealed()
	}
	results := integrity.VerifyBatch(ctx, sealed)

	out := make(map[string]bool, len(records))
	for i := range records {
		out[records[i].ID] = results[i]
		outcome := "verified"
		if !results[i] {
			outcome = "failed"
		}
		metrics.ObserveVerification("archive", outcome)
	}
	return out
}

// AuditEntry is the integrity state of one stored record.
type AuditEntry struct {
	ID        string `json:"id"`
	NomorAkta string `json:"nomorAkta,omitempty"`
	Kecamatan string `json:"kecamatan,omitempty"`
	Verified  bool   `json:"verified"`
	Error     string `json:"error,omitempty"`
}

// Audit verifies every record in a district (or all of them). A row that
// cannot be loaded is reported as unverified with its error; the audit
// carries on with the rest.
func (s *Store) Audit(ctx context.Context, kecamatan string) ([]AuditEntry, error) {
	var ids []string
	q := scopeKecamatan(s.db.WithContext(ctx).Model(&models.MarriageRecord{}), kecamatan)
	if err := q.Order("created_at desc").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list record ids: %w", err)
	}

	entries := make([]AuditEntry, len(ids))
	loaded := make([]models.MarriageRecord, 0, len(ids))
	positions := make([]int, 0, len(ids))
	for i, id := range ids {
		entries[i].ID = id
		rec, err := s.GetRecord(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			entries[i].Error = err.Error()
			s.log.Warn("record unreadable during audit", slog.String("id", id), slog.Any("error", err))
			continue
		}
		entries[i].NomorAkta = rec.NomorAkta
		entries[i].Kecamatan = rec.Kecamatan
		loaded = append(loaded, *rec)
		positions = append(positions, i)
	}

	results := VerifyRecords(ctx, loaded)
	for j, i := range positions {
		entries[i].Verified = results[loaded[j].ID]
	}
	return entries, nil
}
