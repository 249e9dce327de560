package export

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestPostgresInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewPostgresWithPool(mock, "", "run-1")
	require.NoError(t, err)

	p := sampleProduct()
	mock.ExpectExec("INSERT INTO leaderboard_products").
		WithArgs(
			"run-1",
			p.Name,
			p.Tagline,
			[]byte(`["Developer Tools","Artificial Intelligence"]`),
			p.Upvotes,
			p.CommentCount,
			p.ProductURL,
			p.Week,
			p.Year,
			[]byte(`[{"text":"Congrats, \"team\"!","author":"Maker One","date":"2024-12-02T09:15:00.000Z","upvotes":"5"}]`),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, sink.Write(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresNilListsBecomeEmptyArrays(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewPostgresWithPool(mock, "products", "run-2")
	require.NoError(t, err)

	p := sampleProduct()
	p.Tags = nil
	p.Comments = nil
	mock.ExpectExec("INSERT INTO products").
		WithArgs("run-2", p.Name, p.Tagline, []byte(`[]`), p.Upvotes, p.CommentCount, p.ProductURL, p.Week, p.Year, []byte(`[]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, sink.Write(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewPostgresWithPool(mock, "products", "run-3")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO products").WillReturnError(errors.New("connection reset"))
	err = sink.Write(context.Background(), sampleProduct())
	require.ErrorContains(t, err, "insert product")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewPostgresWithPool(mock, "products", "run-4")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS products").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, sink.CreateTable(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresValidation(t *testing.T) {
	t.Parallel()

	_, err := NewPostgresWithPool(nil, "products", "run")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresWithPool(mock, "products; DROP TABLE users", "run")
	require.ErrorContains(t, err, "invalid table name")

	_, err = NewPostgres(context.Background(), PostgresConfig{}, "run")
	require.Error(t, err)
}

func TestOpenPostgresFailsFastWhenUnreachable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	_, err = openPostgres(context.Background(), mock, PostgresConfig{CreateTable: true}, "run-5")
	require.ErrorContains(t, err, "ping postgres")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenPostgresPingsThenCreatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS leaderboard_products").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	sink, err := openPostgres(context.Background(), mock, PostgresConfig{CreateTable: true}, "run-6")
	require.NoError(t, err)
	require.NotNil(t, sink)
	require.NoError(t, mock.ExpectationsWereMet())
}
