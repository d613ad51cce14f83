package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

const mosqueColumns = `
	id, name, latitude, longitude, calculation_method, madhab, timezone,
	reminder_anchor, use_custom_times, custom_times, ramadan_mode,
	suhoor_offset, iftar_offset, jumuah_times, hadith_time, active,
	created_at, updated_at`

// MosqueRepository implements domain.MosqueRepository using PostgreSQL
type MosqueRepository struct {
	db *DB
}

func NewMosqueRepository(db *DB) *MosqueRepository {
	return &MosqueRepository{db: db}
}

// ListActive returns every active mosque ordered by name.
func (r *MosqueRepository) ListActive(ctx context.Context) ([]*domain.Mosque, error) {
	query := `SELECT ` + mosqueColumns + `
		FROM mosques
		WHERE active = TRUE
		ORDER BY name ASC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query mosques: %w", err)
	}
	defer rows.Close()

	mosques := make([]*domain.Mosque, 0)
	for rows.Next() {
		m, err := scanMosque(rows)
		if err != nil {
			return nil, err
		}
		mosques = append(mosques, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mosques: %w", err)
	}

	return mosques, nil
}

// GetByID retrieves a mosque by ID
func (r *MosqueRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Mosque, error) {
	query := `SELECT ` + mosqueColumns + ` FROM mosques WHERE id = $1`

	m, err := scanMosque(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func scanMosque(row pgx.Row) (*domain.Mosque, error) {
	m := &domain.Mosque{}
	var customTimes []byte

	err := row.Scan(
		&m.ID, &m.Name, &m.Latitude, &m.Longitude, &m.CalculationMethod, &m.Madhab, &m.Timezone,
		&m.ReminderAnchor, &m.UseCustomTimes, &customTimes, &m.RamadanMode,
		&m.SuhoorOffset, &m.IftarOffset, &m.JumuahTimes, &m.HadithTime, &m.Active,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan mosque: %w", err)
	}

	if len(customTimes) > 0 {
		// A malformed blob leaves CustomTimes incomplete, which routes the
		// mosque to the computed path.
		_ = json.Unmarshal(customTimes, &m.CustomTimes)
	}

	return m, nil
}
