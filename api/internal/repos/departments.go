package repos

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"civicconnect-backend/api/internal/models"
)

type DepartmentsRepo struct {
	pool *pgxpool.Pool
}

func NewDepartmentsRepo(pool *pgxpool.Pool) *DepartmentsRepo {
	return &DepartmentsRepo{pool: pool}
}

func (r *DepartmentsRepo) EnsureDepartment(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO departments (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING
	`, name)
	return err
}

func (r *DepartmentsRepo) ListDepartments(ctx context.Context) ([]models.Department, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT name, COALESCE(contact_email, ''), created_at
		FROM departments
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []models.Department
	for rows.Next() {
		var d models.Department
		if err := rows.Scan(&d.Name, &d.ContactEmail, &d.CreatedAt); err != nil {
			return nil, err
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}
