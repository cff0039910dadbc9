package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/SlyyCooper/agenai/pkg/workflow"
)

// ReportRecord is a stored report row.
type ReportRecord struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Markdown  string    `json:"markdown"`
	Sources   []string  `json:"sources"`
	TotalCost float64   `json:"total_cost"`
	CreatedAt time.Time `json:"created_at"`
}

// ReportStore persists finished reports. It implements workflow.Publisher.
type ReportStore struct {
	db *PostgresDB
}

func NewReportStore(db *PostgresDB) *ReportStore {
	return &ReportStore{db: db}
}

// Publish renders the document to markdown and stores it under the owner.
func (s *ReportStore) Publish(ctx context.Context, ownerID string, doc *workflow.ReportDocument) (map[string]string, error) {
	sources, err := json.Marshal(doc.References)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sources: %w", err)
	}
	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO reports (id, owner_id, title, markdown, sources, total_cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, doc.ID, ownerID, doc.Title, doc.Markdown(), sources, doc.TotalCost, doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}
	return map[string]string{
		"markdown": fmt.Sprintf("/api/reports/%s", doc.ID),
	}, nil
}

// List returns the owner's reports, newest first, without bodies.
func (s *ReportStore) List(ctx context.Context, ownerID string, limit int) ([]ReportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, owner_id, title, sources, total_cost, created_at
		FROM reports
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var out []ReportRecord
	for rows.Next() {
		var rec ReportRecord
		var sources []byte
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Title, &sources, &rec.TotalCost, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &rec.Sources); err != nil {
				return nil, fmt.Errorf("failed to decode sources: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns one report with its full markdown body.
func (s *ReportStore) Get(ctx context.Context, ownerID string, id uuid.UUID) (*ReportRecord, error) {
	var rec ReportRecord
	var sources []byte
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, owner_id, title, markdown, sources, total_cost, created_at
		FROM reports
		WHERE owner_id = $1 AND id = $2
	`, ownerID, id).Scan(&rec.ID, &rec.OwnerID, &rec.Title, &rec.Markdown, &sources, &rec.TotalCost, &rec.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &rec.Sources); err != nil {
			return nil, fmt.Errorf("failed to decode sources: %w", err)
		}
	}
	return &rec, nil
}
