package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/patchwatch/patchwatch/models"
)

// ScanStore persists completed scan reports and serves history queries.
type ScanStore struct {
	db DB
}

// NewScanStore wraps db with scan-history operations.
func NewScanStore(db DB) *ScanStore {
	return &ScanStore{db: db}
}

// SaveReport records a completed scan and returns its row ID.
// The full report is kept as JSON alongside the queryable summary columns.
func (s *ScanStore) SaveReport(ctx context.Context, report *models.ScanReport) (int64, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("encoding report: %w", err)
	}
	rec := models.ScanRecord{
		Owner:       report.Owner,
		Repo:        report.Repo,
		Status:      string(report.Status),
		TotalFiles:  report.TotalFiles,
		TotalVulns:  report.TotalVulnerabilities,
		ReportJSON:  string(body),
		StartedAt:   report.StartedAt.UTC().Format(time.RFC3339),
		CompletedAt: report.CompletedAt.UTC().Format(time.RFC3339),
	}
	id, err := s.db.Insert(ctx, "scans", rec)
	if err != nil {
		return 0, fmt.Errorf("saving scan for %s/%s: %w", report.Owner, report.Repo, err)
	}
	return id, nil
}

// RecentScans returns the most recent scan records, newest first.
func (s *ScanStore) RecentScans(ctx context.Context, limit int) ([]models.ScanRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var recs []models.ScanRecord
	err := s.db.Select(ctx, &recs,
		`SELECT id, owner, repo, status, total_files, total_vulns, report_json, started_at, completed_at
		 FROM scans ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	return recs, nil
}

// ScanByID returns one scan record with its full report payload.
func (s *ScanStore) ScanByID(ctx context.Context, id int64) (*models.ScanRecord, error) {
	var rec models.ScanRecord
	err := s.db.Get(ctx, &rec,
		`SELECT id, owner, repo, status, total_files, total_vulns, report_json, started_at, completed_at
		 FROM scans WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("loading scan %d: %w", id, err)
	}
	return &rec, nil
}

// LatestForRepo returns the newest scan record for owner/repo, or nil when the
// repository has never been scanned.
func (s *ScanStore) LatestForRepo(ctx context.Context, owner, repo string) (*models.ScanRecord, error) {
	var recs []models.ScanRecord
	err := s.db.Select(ctx, &recs,
		`SELECT id, owner, repo, status, total_files, total_vulns, report_json, started_at, completed_at
		 FROM scans WHERE owner = ? AND repo = ? ORDER BY id DESC LIMIT 1`, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("loading latest scan for %s/%s: %w", owner, repo, err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// Report decodes the stored report payload of a record.
func (s *ScanStore) Report(rec *models.ScanRecord) (*models.ScanReport, error) {
	var report models.ScanReport
	if err := json.Unmarshal([]byte(rec.ReportJSON), &report); err != nil {
		return nil, fmt.Errorf("decoding stored report %d: %w", rec.ID, err)
	}
	return &report, nil
}
