package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/boardwatch/internal/seen"
	"github.com/JakeFAU/boardwatch/internal/storage"
)

func newMockStore(t *testing.T) (*StateStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock, "", "bl")
	require.NoError(t, err)
	return store, mock
}

func expectSchema(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS boardwatch_state").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
}

func TestNewWithPoolValidates(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(nil, "", "bl")
	require.Error(t, err)
	_, err = NewWithPool(mock, "bad-name;", "bl")
	require.Error(t, err)
	_, err = NewWithPool(mock, "state", "")
	require.Error(t, err)

	store, err := NewWithPool(mock, "", "bl")
	require.NoError(t, err)
	require.Equal(t, defaultTable, store.table)
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS boardwatch_state").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadReturnsDocument(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	expectSchema(mock)
	mock.ExpectQuery("SELECT ids FROM boardwatch_state").
		WithArgs("bl").
		WillReturnRows(pgxmock.NewRows([]string{"ids"}).AddRow([]byte(`["https://theqoo.net/bl/1"]`)))

	got, err := store.Read(context.Background())
	require.NoError(t, err)
	require.JSONEq(t, `["https://theqoo.net/bl/1"]`, string(got))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadMissingRowIsNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	expectSchema(mock)
	mock.ExpectQuery("SELECT ids FROM boardwatch_state").
		WithArgs("bl").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Read(context.Background())
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadPropagatesFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	expectSchema(mock)
	mock.ExpectQuery("SELECT ids FROM boardwatch_state").
		WithArgs("bl").
		WillReturnError(errors.New("connection reset"))

	_, err := store.Read(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestWriteUpsertsRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	expectSchema(mock)
	payload := []byte(`["a","b"]`)
	mock.ExpectExec("INSERT INTO boardwatch_state").
		WithArgs("bl", payload).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Write(context.Background(), payload))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteWrapsError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	expectSchema(mock)
	mock.ExpectExec("INSERT INTO boardwatch_state").
		WithArgs("bl", []byte(`[]`)).
		WillReturnError(errors.New("disk full"))

	err := store.Write(context.Background(), []byte(`[]`))
	require.ErrorContains(t, err, "upsert state row")
}

func TestSchemaCreatedOnceOnFirstUse(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	expectSchema(mock)
	mock.ExpectQuery("SELECT ids FROM boardwatch_state").
		WithArgs("bl").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO boardwatch_state").
		WithArgs("bl", []byte(`[]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	_, err := store.Read(context.Background())
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, store.Write(context.Background(), []byte(`[]`)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaFailureIsRetried(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS boardwatch_state").
		WillReturnError(errors.New("connection refused"))
	expectSchema(mock)
	mock.ExpectQuery("SELECT ids FROM boardwatch_state").
		WithArgs("bl").
		WillReturnRows(pgxmock.NewRows([]string{"ids"}).AddRow([]byte(`["https://theqoo.net/bl/1"]`)))

	_, err := store.Read(context.Background())
	require.ErrorContains(t, err, "create state table")

	got, err := store.Read(context.Background())
	require.NoError(t, err)
	require.JSONEq(t, `["https://theqoo.net/bl/1"]`, string(got))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnreachableDatabaseLoadsEmptySet(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS boardwatch_state").
		WillReturnError(errors.New("connection refused"))

	set := seen.NewStore(store, zap.NewNop()).Load(context.Background())
	require.Zero(t, set.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}
