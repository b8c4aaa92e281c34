package session

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uniquery/internal/mapper"
	"uniquery/internal/schema"
)

func invoicingRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry([]schema.Table{
		{
			Name:       "invoices",
			PrimaryKey: "id",
			Columns:    []string{"id", "salesrep_id", "total"},
			ForeignKeys: []schema.ForeignKey{
				{Column: "salesrep_id", ReferencedTable: "salesreps", ReferencedColumn: "id"},
			},
		},
		{Name: "salesreps", PrimaryKey: "id", Columns: []string{"id", "name"}},
	}, nil)
	require.NoError(t, err)
	return reg
}

func newTestSession(t *testing.T, dialect Dialect) (*Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, invoicingRegistry(t), Options{Dialect: dialect}), mock
}

func TestQueryMapsAnalyzedStatement(t *testing.T) {
	s, mock := newTestSession(t, MySQL)

	query := `SELECT invoices.id, invoices.salesrep_id, invoices.total,
		salesreps.id, salesreps.name
		FROM invoices JOIN salesreps ON invoices.salesrep_id = salesreps.id`

	mock.ExpectQuery("FROM invoices JOIN salesreps").
		WillReturnRows(sqlmock.NewRows([]string{"id", "salesrep_id", "total", "id", "name"}).
			AddRow(1, 1, 100, 1, "Ann").
			AddRow(2, 1, 150, 1, "Ann"))

	res, err := s.Query(context.Background(), query, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 2, res.Len("invoices"))
	assert.Equal(t, 1, res.Len("salesreps"))
	rep := res.Records("salesreps")[0]
	assert.Len(t, rep.List("invoices"), 2)
}

func TestQueryWithExplicitTables(t *testing.T) {
	s, mock := newTestSession(t, MySQL)

	// A UNION defeats static column attribution; the caller supplies the
	// participating tables instead.
	query := "SELECT * FROM invoices WHERE total > ? UNION SELECT * FROM invoices WHERE total < ?"
	mock.ExpectQuery("UNION").
		WithArgs(100, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "salesrep_id", "total"}).
			AddRow(1, 1, 150))

	res, err := s.Query(context.Background(), query, []any{100, 10}, WithTables("invoices"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Len("invoices"))
}

func TestQueryColumnCountMismatchWithOverride(t *testing.T) {
	s, mock := newTestSession(t, MySQL)

	mock.ExpectQuery("FROM invoices").
		WillReturnRows(sqlmock.NewRows([]string{"id", "total"}).AddRow(1, 100))

	_, err := s.Query(context.Background(), "SELECT id, total FROM invoices", nil,
		WithTables("invoices", "salesreps"))
	var mismatch *mapper.ColumnCountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 5, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Actual)
}

func TestQueryUnanalyzableWithoutOverride(t *testing.T) {
	s, _ := newTestSession(t, MySQL)

	_, err := s.Query(context.Background(), "SELECT id FROM invoices UNION SELECT id FROM salesreps", nil)
	require.Error(t, err)
}

func TestSavepointStack(t *testing.T) {
	s, mock := newTestSession(t, MySQL)

	mock.ExpectBegin()
	mock.ExpectExec(`^SAVEPOINT sp_1$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^SAVEPOINT sp_2$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^ROLLBACK TO SAVEPOINT sp_2$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^RELEASE SAVEPOINT sp_1$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	outer, err := tx.BeginScope(ctx)
	require.NoError(t, err)
	inner, err := tx.BeginScope(ctx)
	require.NoError(t, err)

	require.NoError(t, inner.Rollback(ctx))
	require.NoError(t, outer.Release(ctx))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScopeFinishesOnce(t *testing.T) {
	s, mock := newTestSession(t, MySQL)

	mock.ExpectBegin()
	mock.ExpectExec(`^SAVEPOINT sp_1$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^RELEASE SAVEPOINT sp_1$`).WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	sc, err := tx.BeginScope(ctx)
	require.NoError(t, err)

	require.NoError(t, sc.Release(ctx))
	assert.Error(t, sc.Rollback(ctx))
}

func TestSaveInsertCapturesID(t *testing.T) {
	s, mock := newTestSession(t, MySQL)

	mock.ExpectExec("INSERT INTO `salesreps` \\(`name`\\) VALUES \\(\\?\\)").
		WithArgs("Ann").
		WillReturnResult(sqlmock.NewResult(7, 1))

	table, _ := s.Registry().Table("salesreps")
	rec := mapper.NewRecord(table)
	rec.SetField("name", "Ann")

	require.NoError(t, s.Save(context.Background(), rec))
	assert.Equal(t, int64(7), rec.Field("id"))
}

func TestSaveInsertReturningID(t *testing.T) {
	s, mock := newTestSession(t, Postgres)

	mock.ExpectQuery(`INSERT INTO "salesreps" \("name"\) VALUES \(\$1\) RETURNING "id"`).
		WithArgs("Ann").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	table, _ := s.Registry().Table("salesreps")
	rec := mapper.NewRecord(table)
	rec.SetField("name", "Ann")

	require.NoError(t, s.Save(context.Background(), rec))
	assert.Equal(t, int64(7), rec.Field("id"))
}

func TestSaveUpsertsExistingRecord(t *testing.T) {
	s, mock := newTestSession(t, MySQL)

	mock.ExpectExec("ON DUPLICATE KEY UPDATE `name` = VALUES\\(`name`\\)").
		WithArgs(3, "Ben").
		WillReturnResult(sqlmock.NewResult(0, 1))

	table, _ := s.Registry().Table("salesreps")
	rec := mapper.NewRecord(table)
	rec.SetField("id", 3)
	rec.SetField("name", "Ben")

	require.NoError(t, s.Save(context.Background(), rec))
}

func TestSaveUpsertConflictDialect(t *testing.T) {
	s, mock := newTestSession(t, SQLite)

	mock.ExpectExec(`ON CONFLICT \("id"\) DO UPDATE SET "name" = excluded."name"`).
		WithArgs(3, "Ben").
		WillReturnResult(sqlmock.NewResult(0, 1))

	table, _ := s.Registry().Table("salesreps")
	rec := mapper.NewRecord(table)
	rec.SetField("id", 3)
	rec.SetField("name", "Ben")

	require.NoError(t, s.Save(context.Background(), rec))
}

func TestDeleteRequiresPrimaryKey(t *testing.T) {
	s, _ := newTestSession(t, MySQL)

	table, _ := s.Registry().Table("salesreps")
	rec := mapper.NewRecord(table)
	rec.SetField("name", "Ann")

	err := s.Delete(context.Background(), rec)
	var missing *MissingIDError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "salesreps", missing.Table)
}

func TestDeleteAll(t *testing.T) {
	s, mock := newTestSession(t, MySQL)

	mock.ExpectExec("DELETE FROM `salesreps` WHERE `id` IN \\(\\?,\\?\\)").
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, s.DeleteAll(context.Background(), "salesreps", []any{1, 2}))
	require.NoError(t, s.DeleteAll(context.Background(), "salesreps", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMany(t *testing.T) {
	s, mock := newTestSession(t, MySQL)

	mock.ExpectExec("INSERT INTO `salesreps` \\(`name`\\) VALUES \\(\\?\\),\\(\\?\\)").
		WithArgs("Ann", "Ben").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := s.InsertMany(context.Background(), "salesreps", []string{"name"},
		[][]any{{"Ann"}, {"Ben"}})
	require.NoError(t, err)

	err = s.InsertMany(context.Background(), "salesreps", []string{"name"},
		[][]any{{"Ann", "extra"}})
	require.Error(t, err)
}
