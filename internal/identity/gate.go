// Package identity resolves a caller credential to an authenticated actor.
// Token issuance lives outside this system; the gate only verifies that a
// presented token maps to a known actor and role.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-workflow/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrUnauthenticated marks a credential that resolves to no valid actor.
var ErrUnauthenticated = errors.New("unauthenticated")

// Gate authenticates a caller credential.
type Gate interface {
	Authenticate(ctx context.Context, credential string) (models.Actor, error)
}

// RedisGate resolves bearer tokens against session hashes written by the
// external credential service: session:<token> -> {actor_id, role, name}.
type RedisGate struct {
	rdb *redis.Client
}

// NewRedisGate creates a Redis-backed identity gate
func NewRedisGate(addr, password string, db int) (*RedisGate, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisGate{rdb: rdb}, nil
}

// Close closes the Redis connection
func (g *RedisGate) Close() error {
	return g.rdb.Close()
}

// Authenticate resolves a bearer token to an actor. Unknown or malformed
// sessions come back as ErrUnauthenticated, never as a partial actor.
func (g *RedisGate) Authenticate(ctx context.Context, credential string) (models.Actor, error) {
	token := strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if token == "" {
		return models.Actor{}, fmt.Errorf("empty credential: %w", ErrUnauthenticated)
	}

	session, err := g.rdb.HGetAll(ctx, "session:"+token).Result()
	if err != nil {
		return models.Actor{}, fmt.Errorf("session lookup failed: %w", err)
	}
	if len(session) == 0 {
		return models.Actor{}, fmt.Errorf("unknown session: %w", ErrUnauthenticated)
	}

	actorID, err := uuid.Parse(session["actor_id"])
	if err != nil {
		return models.Actor{}, fmt.Errorf("malformed session actor id: %w", ErrUnauthenticated)
	}

	role := models.Role(session["role"])
	switch role {
	case models.RoleAdministrator, models.RoleClient, models.RoleDriver:
	default:
		return models.Actor{}, fmt.Errorf("unknown role %q: %w", session["role"], ErrUnauthenticated)
	}

	return models.Actor{
		ID:   actorID,
		Name: session["name"],
		Role: role,
	}, nil
}
