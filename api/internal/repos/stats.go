package repos

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"civicconnect-backend/api/internal/models"
)

type StatsRepo struct {
	pool *pgxpool.Pool
}

func NewStatsRepo(pool *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

func (r *StatsRepo) ComplaintStats(ctx context.Context) (models.ComplaintStats, error) {
	stats := models.ComplaintStats{ByStatus: make(map[string]int64)}
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM complaints
		GROUP BY status
	`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

func (r *StatsRepo) VerificationStats(ctx context.Context) (models.VerificationStats, error) {
	stats := models.VerificationStats{ByMLStatus: make(map[string]int64)}
	rows, err := r.pool.Query(ctx, `
		SELECT COALESCE(NULLIF(ml_status, ''), 'unprocessed'), COUNT(*)
		FROM complaints
		GROUP BY 1
	`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		if status == "unprocessed" {
			stats.Unprocessed = count
		} else {
			stats.ByMLStatus[status] = count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE ml_verified),
			COUNT(*) FILTER (WHERE ml_pending)
		FROM complaints
	`).Scan(&stats.Verified, &stats.Pending)
	return stats, err
}

func (r *StatsRepo) CountsBy(ctx context.Context, dimension string) ([]models.CategoryCount, error) {
	var query string
	switch dimension {
	case "category":
		query = `SELECT COALESCE(NULLIF(category, ''), 'other'), COUNT(*) FROM complaints GROUP BY 1 ORDER BY 2 DESC`
	case "department":
		query = `SELECT department, COUNT(*) FROM complaints GROUP BY 1 ORDER BY 2 DESC`
	case "severity":
		query = `SELECT ml_severity, COUNT(*) FROM complaints WHERE ml_verified GROUP BY 1 ORDER BY 2 DESC`
	default:
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CategoryCount
	for rows.Next() {
		var c models.CategoryCount
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
