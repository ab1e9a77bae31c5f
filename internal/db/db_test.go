package db

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMigrateURLRewritesScheme(t *testing.T) {
	require.Equal(t, "pgx5://u:p@localhost:5432/nefol?sslmode=disable", migrateURL("postgres://u:p@localhost:5432/nefol?sslmode=disable"))
	require.Equal(t, "pgx5://localhost/nefol", migrateURL("postgresql://localhost/nefol"))
	require.Equal(t, "pgx5://already", migrateURL("pgx5://already"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationFiles, "migrations/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	require.Len(t, downs, len(ups))
}

func TestErrorClassifiers(t *testing.T) {
	require.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsUniqueViolation(errors.New("nope")))
	require.True(t, IsNotFound(pgx.ErrNoRows))
}

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(context.Context) error   { f.committed = true; return nil }
func (f *fakeTx) Rollback(context.Context) error { f.rolledBack = true; return nil }

type fakeBeginner struct{ tx *fakeTx }

func (f fakeBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) { return f.tx, nil }

func TestWithTxCommitsOnSuccess(t *testing.T) {
	tx := &fakeTx{}
	require.NoError(t, WithTx(context.Background(), fakeBeginner{tx: tx}, func(pgx.Tx) error { return nil }))
	require.True(t, tx.committed)
	require.False(t, tx.rolledBack)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	tx := &fakeTx{}
	boom := errors.New("boom")
	err := WithTx(context.Background(), fakeBeginner{tx: tx}, func(pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, tx.committed)
	require.True(t, tx.rolledBack)
}
