package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// PersonRepository defines read access to the person directory. Create is
// only exercised by operational tooling (seeding); the ticket lifecycle
// treats persons as read-only.
type PersonRepository interface {
	Create(ctx context.Context, person *domain.Person) error
	GetByID(ctx context.Context, id string) (*domain.Person, error)
	GetByEmail(ctx context.Context, email string) (*domain.Person, error)
	List(ctx context.Context) ([]domain.Person, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.Person, error)
}

type personRepository struct {
	pool *pgxpool.Pool
}

// NewPersonRepository returns a Postgres-backed implementation.
func NewPersonRepository(pool *pgxpool.Pool) PersonRepository {
	return &personRepository{pool: pool}
}

func (r *personRepository) Create(ctx context.Context, person *domain.Person) error {
	const query = `
        INSERT INTO persons (name, email, role)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		person.Name,
		person.Email,
		person.Role,
	).Scan(&person.ID, &person.CreatedAt, &person.UpdatedAt)
	return errors.WithStack(err)
}

func (r *personRepository) GetByID(ctx context.Context, id string) (*domain.Person, error) {
	const query = `
        SELECT id, name, email, role, created_at, updated_at
        FROM persons WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *personRepository) GetByEmail(ctx context.Context, email string) (*domain.Person, error) {
	const query = `
        SELECT id, name, email, role, created_at, updated_at
        FROM persons WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *personRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Person, error) {
	var person domain.Person
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&person.ID,
		&person.Name,
		&person.Email,
		&person.Role,
		&person.CreatedAt,
		&person.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, errors.WithStack(err)
	}
	return &person, nil
}

func (r *personRepository) List(ctx context.Context) ([]domain.Person, error) {
	const query = `
        SELECT id, name, email, role, created_at, updated_at
        FROM persons ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()
	return scanPersons(rows)
}

func (r *personRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `
        SELECT id, name, email, role, created_at, updated_at
        FROM persons WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()
	return scanPersons(rows)
}

func scanPersons(rows pgx.Rows) ([]domain.Person, error) {
	var result []domain.Person
	for rows.Next() {
		var person domain.Person
		if err := rows.Scan(
			&person.ID,
			&person.Name,
			&person.Email,
			&person.Role,
			&person.CreatedAt,
			&person.UpdatedAt,
		); err != nil {
			return nil, errors.WithStack(err)
		}
		result = append(result, person)
	}
	return result, errors.WithStack(rows.Err())
}
