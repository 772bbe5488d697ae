package migrate

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testConn(t *testing.T) *sql.Conn {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.ExecContext(context.Background(), `
		CREATE TABLE schemer_migrations (id TEXT PRIMARY KEY, applied_at INTEGER NOT NULL);
		CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT);
	`)
	require.NoError(t, err)
	return conn
}

func TestApplyOrdersByDependency(t *testing.T) {
	conn := testConn(t)
	ctx := context.Background()

	var order []string
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	c := uuid.MustParse("00000000-0000-0000-0000-000000000003")

	record := func(name string) func(ctx context.Context, conn *sql.Conn) error {
		return func(ctx context.Context, conn *sql.Conn) error {
			order = append(order, name)
			return nil
		}
	}

	ctrl := NewController(
		Migration{ID: c, Dependencies: []uuid.UUID{a, b}, Description: "c", Apply: record("c")},
		Migration{ID: a, Description: "a", Apply: record("a")},
		Migration{ID: b, Dependencies: []uuid.UUID{a}, Description: "b", Apply: record("b")},
	)

	require.NoError(t, ctrl.Apply(ctx, conn))
	require.Equal(t, []string{"a", "b", "c"}, order)

	var count int
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM schemer_migrations").Scan(&count))
	require.Equal(t, 3, count)
}

func TestApplySkipsAlreadyApplied(t *testing.T) {
	conn := testConn(t)
	ctx := context.Background()

	runs := 0
	id := uuid.MustParse("00000000-0000-0000-0000-000000000010")
	ctrl := NewController(Migration{ID: id, Description: "once", Apply: func(ctx context.Context, conn *sql.Conn) error {
		runs++
		return nil
	}})

	require.NoError(t, ctrl.Apply(ctx, conn))
	require.NoError(t, ctrl.Apply(ctx, conn))
	require.Equal(t, 1, runs)
}

func TestApplyRollsBackFailedMigration(t *testing.T) {
	conn := testConn(t)
	ctx := context.Background()

	id := uuid.MustParse("00000000-0000-0000-0000-000000000020")
	ctrl := NewController(Migration{ID: id, Description: "bad", Apply: func(ctx context.Context, conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, "INSERT INTO widgets (id, name) VALUES (1, 'x')"); err != nil {
			return err
		}
		return sql.ErrConnDone // arbitrary non-nil failure
	}})

	err := ctrl.Apply(ctx, conn)
	require.Error(t, err)

	var count int
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM widgets").Scan(&count))
	require.Equal(t, 0, count, "rollback should have discarded the insert")

	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM schemer_migrations").Scan(&count))
	require.Equal(t, 0, count)
}

func TestNewControllerPanicsOnDuplicateID(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000030")
	require.Panics(t, func() {
		NewController(
			Migration{ID: id, Description: "first"},
			Migration{ID: id, Description: "second"},
		)
	})
}

func TestNewControllerPanicsOnUnknownDependency(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000040")
	missing := uuid.MustParse("00000000-0000-0000-0000-000000000041")
	require.Panics(t, func() {
		NewController(Migration{ID: id, Dependencies: []uuid.UUID{missing}, Description: "orphan"})
	})
}

func TestOrderDetectsCycle(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000050")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000051")
	ctrl := &Controller{migrations: map[uuid.UUID]Migration{
		a: {ID: a, Dependencies: []uuid.UUID{b}},
		b: {ID: b, Dependencies: []uuid.UUID{a}},
	}}
	_, err := ctrl.order()
	require.Error(t, err)
}
