package pg

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/accountlink/internal/domain/repository"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, New(mock)
}

func TestGetUserByID(t *testing.T) {
	mock, s := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .* FROM app_user WHERE id").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "email", "display_name", "is_active", "created_at", "last_modified"}).
			AddRow("u1", "", "a@example.com", "A", true, now, now))

	u, err := s.GetUserByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)
	assert.True(t, u.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetExternalLoginForProvider_NotFound(t *testing.T) {
	mock, s := newMock(t)

	mock.ExpectQuery("SELECT .* FROM external_login WHERE provider").
		WithArgs("google", "sub").
		WillReturnRows(pgxmock.NewRows([]string{"id", "provider", "provider_subject", "user_id", "created_at", "last_modified"}))

	_, err := s.GetExternalLoginForProvider(context.Background(), "google", "sub")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddExternalLogin_UniqueViolationIsConflict(t *testing.T) {
	mock, s := newMock(t)

	mock.ExpectExec("INSERT INTO external_login").
		WithArgs(pgxmock.AnyArg(), "google", "sub", "u1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_external_login_provider_subject"})

	_, err := s.AddExternalLogin(context.Background(), "u1", "google", "sub")
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddExternalLogin_OK(t *testing.T) {
	mock, s := newMock(t)

	mock.ExpectExec("INSERT INTO external_login").
		WithArgs(pgxmock.AnyArg(), "github", "42", "u1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	l, err := s.AddExternalLogin(context.Background(), "u1", "github", "42")
	require.NoError(t, err)
	assert.NotEmpty(t, l.ID)
	assert.Equal(t, "u1", l.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveExternalLogin_NoRows(t *testing.T) {
	mock, s := newMock(t)

	mock.ExpectExec("DELETE FROM external_login").
		WithArgs("l1", "u1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.RemoveExternalLogin(context.Background(), "u1", "l1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserWithRoles_Tx(t *testing.T) {
	mock, s := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO app_user").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "a@example.com", "A", true, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO role").
		WithArgs("role-user", "User").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec("INSERT INTO user_role").
		WithArgs(pgxmock.AnyArg(), "User").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	u, err := s.CreateUserWithRoles(context.Background(),
		&repository.User{Email: "a@example.com", DisplayName: "A", IsActive: true},
		[]string{repository.RoleUser})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRolesForUser(t *testing.T) {
	mock, s := newMock(t)

	mock.ExpectQuery("SELECT r.name FROM user_role").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("Admin").AddRow("User"))

	roles, err := s.GetRolesForUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin", "User"}, roles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTenantForUser_UnknownUser(t *testing.T) {
	mock, s := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tenant").
		WithArgs(pgxmock.AnyArg(), "Acme", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE app_user SET tenant_id").
		WithArgs("missing", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err := s.CreateTenantForUser(context.Background(), "missing", "Acme")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_SkipsApplied(t *testing.T) {
	mock, _ := newMock(t)
	fsys := fstest.MapFS{
		"0001_init.sql":    {Data: []byte("CREATE TABLE things (id TEXT)")},
		"0002_widgets.sql": {Data: []byte("CREATE TABLE widgets (id TEXT)")},
		"README.md":        {Data: []byte("ignored")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE widgets").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(2, "widgets").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	applied, err := Migrate(context.Background(), mock, fsys, ".")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}
