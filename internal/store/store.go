package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"order-workflow/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetActorByID retrieves an actor by ID
func (s *Store) GetActorByID(ctx context.Context, id uuid.UUID) (*models.Actor, error) {
	var actor models.Actor
	err := s.db.GetContext(ctx, &actor, "SELECT * FROM actors WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("actor %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &actor, nil
}

// ListAdministrators retrieves every administrator actor, for notification
// fan-out on role-addressed events
func (s *Store) ListAdministrators(ctx context.Context) ([]models.Actor, error) {
	var actors []models.Actor
	err := s.db.SelectContext(ctx, &actors,
		"SELECT * FROM actors WHERE role = $1 ORDER BY created_at", models.RoleAdministrator)
	return actors, err
}
