package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

// TemplateRepository implements domain.TemplateRepository using PostgreSQL
type TemplateRepository struct {
	db *DB
}

// NewTemplateRepository creates a new TemplateRepository
func NewTemplateRepository(db *DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// GetByName retrieves an operator override by name
func (r *TemplateRepository) GetByName(ctx context.Context, name string) (*domain.Template, error) {
	query := `
		SELECT id, name, title, content, variables, updated_at
		FROM message_templates
		WHERE name = $1
	`

	t := &domain.Template{}
	var variables []byte
	err := r.db.Pool.QueryRow(ctx, query, name).Scan(&t.ID, &t.Name, &t.Title, &t.Content, &variables, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isSchemaDrift(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}

	if len(variables) > 0 {
		_ = json.Unmarshal(variables, &t.Variables)
	}
	if len(t.Variables) == 0 {
		t.ExtractVariables()
	}

	return t, nil
}

// HadithRepository implements domain.HadithRepository using PostgreSQL
type HadithRepository struct {
	db *DB
}

func NewHadithRepository(db *DB) *HadithRepository {
	return &HadithRepository{db: db}
}

// ForDay picks one hadith deterministically for the given day of year.
func (r *HadithRepository) ForDay(ctx context.Context, dayOfYear int) (*domain.Hadith, error) {
	var count int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM hadiths`).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count hadiths: %w", err)
	}
	if count == 0 {
		return nil, domain.ErrNotFound
	}

	h := &domain.Hadith{}
	query := `SELECT id, text, source FROM hadiths ORDER BY id LIMIT 1 OFFSET $1`
	if err := r.db.Pool.QueryRow(ctx, query, dayOfYear%count).Scan(&h.ID, &h.Text, &h.Source); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read hadith: %w", err)
	}
	return h, nil
}
