// Package migrate applies ordered, UUID-identified schema migrations to
// the wallet database, each declaring the predecessors it depends on.
// The controller here is a small from-scratch reimplementation of the
// dependency-graph migration runner the original Rust wallet drives
// through the schemer/schemer_rusqlite crates: a UUID per migration, an
// explicit dependency set instead of a bare sequence number, and a
// migrations-applied table recording what has already run.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Migration is one forward-only schema change. Dependencies lists the
// IDs that must already be applied before this one runs; the controller
// derives the total apply order from the dependency graph rather than
// trusting the order migrations are registered in.
type Migration struct {
	ID           uuid.UUID
	Dependencies []uuid.UUID
	Description  string
	Apply        func(ctx context.Context, conn *sql.Conn) error
}

// Controller owns the full set of known migrations and applies whichever
// of them the database hasn't recorded yet.
type Controller struct {
	migrations map[uuid.UUID]Migration
}

// NewController builds a controller from the given migrations. It
// panics on a duplicate ID or a dependency that names a migration not
// present in the set — both are programmer errors, not runtime ones.
func NewController(migrations ...Migration) *Controller {
	c := &Controller{migrations: make(map[uuid.UUID]Migration, len(migrations))}
	for _, m := range migrations {
		if _, exists := c.migrations[m.ID]; exists {
			panic(fmt.Sprintf("migrate: duplicate migration id %s", m.ID))
		}
		c.migrations[m.ID] = m
	}
	for _, m := range c.migrations {
		for _, dep := range m.Dependencies {
			if _, ok := c.migrations[dep]; !ok {
				panic(fmt.Sprintf("migrate: %s depends on unknown migration %s", m.ID, dep))
			}
		}
	}
	return c
}

// order returns migration IDs in an order that respects every
// dependency edge, breaking ties by ID so the result is deterministic.
func (c *Controller) order() ([]uuid.UUID, error) {
	visited := make(map[uuid.UUID]int) // 0 unvisited, 1 in-progress, 2 done
	var result []uuid.UUID

	ids := make([]uuid.UUID, 0, len(c.migrations))
	for id := range c.migrations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var visit func(id uuid.UUID) error
	visit = func(id uuid.UUID) error {
		switch visited[id] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("migrate: dependency cycle at %s", id)
		}
		visited[id] = 1
		deps := append([]uuid.UUID(nil), c.migrations[id].Dependencies...)
		sort.Slice(deps, func(i, j int) bool { return deps[i].String() < deps[j].String() })
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visited[id] = 2
		result = append(result, id)
		return nil
	}

	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Apply runs every migration not yet recorded as applied, in dependency
// order, each inside its own BEGIN IMMEDIATE transaction against conn.
// A failed migration rolls back and Apply returns immediately, leaving
// the schema at the previously-applied migration.
func (c *Controller) Apply(ctx context.Context, conn *sql.Conn) error {
	order, err := c.order()
	if err != nil {
		return err
	}

	applied := make(map[uuid.UUID]bool)
	rows, err := conn.QueryContext(ctx, "SELECT id FROM schemer_migrations")
	if err != nil {
		return fmt.Errorf("migrate: list applied migrations: %w", err)
	}
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			rows.Close()
			return fmt.Errorf("migrate: scan applied migration: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			rows.Close()
			return fmt.Errorf("migrate: corrupt migration id %q: %w", idStr, err)
		}
		applied[id] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("migrate: list applied migrations: %w", err)
	}
	rows.Close()

	for _, id := range order {
		if applied[id] {
			continue
		}
		m := c.migrations[id]
		if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
			return fmt.Errorf("migrate: begin %s: %w", id, err)
		}
		if err := m.Apply(ctx, conn); err != nil {
			if _, rbErr := conn.ExecContext(ctx, "ROLLBACK"); rbErr != nil {
				return fmt.Errorf("migrate: rollback %s failed after error %v: %w", id, err, rbErr)
			}
			return fmt.Errorf("migrate: apply %s (%s): %w", id, m.Description, err)
		}
		if _, err := conn.ExecContext(ctx, "INSERT INTO schemer_migrations (id, applied_at) VALUES (?, strftime('%s','now'))", id.String()); err != nil {
			conn.ExecContext(ctx, "ROLLBACK")
			return fmt.Errorf("migrate: record %s: %w", id, err)
		}
		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			return fmt.Errorf("migrate: commit %s: %w", id, err)
		}
	}
	return nil
}
