// Package pg implementa repository.Store sobre PostgreSQL (pgx v5).
package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/accountlink/internal/domain/repository"
)

var _ repository.Store = (*Store)(nil)

// DB es el subconjunto de pgxpool.Pool que usa el store.
// pgxmock.PgxPoolIface también lo satisface.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PoolOptions ajusta el pool de conexiones.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

type Store struct {
	db   DB
	pool *pgxpool.Pool
	now  func() time.Time
}

// New envuelve una conexión existente. El caller es dueño de su ciclo de vida.
func New(db DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Open crea un pool a partir del DSN y lo valida con Ping.
func Open(ctx context.Context, dsn string, opts PoolOptions) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		pcfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		pcfg.MinConns = opts.MinConns
	}
	if opts.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = opts.ConnMaxLifetime
		pcfg.MaxConnIdleTime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}

	s := New(pool)
	s.pool = pool
	return s, nil
}

// DB expone la conexión subyacente (migraciones).
func (s *Store) DB() DB { return s.db }

// Ping verifica la conexión; sin pool propio siempre retorna nil.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

// Close cierra el pool si fue abierto por Open (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

const userColumns = `id, COALESCE(tenant_id, ''), email, display_name, is_active, created_at, last_modified`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.DisplayName, &u.IsActive, &u.CreatedAt, &u.LastModified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*repository.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM app_user WHERE id = $1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*repository.User, error) {
	const q = `SELECT ` + userColumns + ` FROM app_user WHERE LOWER(email) = LOWER($1) ORDER BY created_at LIMIT 1`
	return scanUser(s.db.QueryRow(ctx, q, email))
}

const loginColumns = `id, provider, provider_subject, user_id, created_at, last_modified`

func (s *Store) GetExternalLoginForProvider(ctx context.Context, provider, subject string) (*repository.ExternalLogin, error) {
	const q = `SELECT ` + loginColumns + ` FROM external_login WHERE provider = $1 AND provider_subject = $2`
	var l repository.ExternalLogin
	err := s.db.QueryRow(ctx, q, provider, subject).Scan(
		&l.ID, &l.Provider, &l.ProviderSubject, &l.UserID, &l.Created, &l.LastModified,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) GetExternalLoginsForUser(ctx context.Context, userID string) ([]repository.ExternalLogin, error) {
	const q = `SELECT ` + loginColumns + ` FROM external_login WHERE user_id = $1 ORDER BY created_at, id`
	rows, err := s.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]repository.ExternalLogin, 0)
	for rows.Next() {
		var l repository.ExternalLogin
		if err := rows.Scan(&l.ID, &l.Provider, &l.ProviderSubject, &l.UserID, &l.Created, &l.LastModified); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) AddExternalLogin(ctx context.Context, userID, provider, subject string) (*repository.ExternalLogin, error) {
	if userID == "" || provider == "" || subject == "" {
		return nil, repository.ErrInvalidInput
	}
	now := s.now()
	l := repository.ExternalLogin{
		ID:              uuid.NewString(),
		Provider:        provider,
		ProviderSubject: subject,
		UserID:          userID,
		Created:         now,
		LastModified:    now,
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO external_login (id, provider, provider_subject, user_id, created_at, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.Provider, l.ProviderSubject, l.UserID, l.Created, l.LastModified,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &l, nil
}

func (s *Store) RemoveExternalLogin(ctx context.Context, userID, loginID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM external_login WHERE id = $1 AND user_id = $2`, loginID, userID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) CreateUserWithRoles(ctx context.Context, user *repository.User, roles []string) (*repository.User, error) {
	if user == nil || strings.TrimSpace(user.Email) == "" {
		return nil, repository.ErrInvalidInput
	}
	u := *user
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := s.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.LastModified = now

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO app_user (id, tenant_id, email, display_name, is_active, created_at, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, nullIfEmpty(u.TenantID), u.Email, u.DisplayName, u.IsActive, u.CreatedAt, u.LastModified,
	)
	if err != nil {
		return nil, mapError(err)
	}
	for _, r := range roles {
		if err := assignRole(ctx, tx, u.ID, r); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetRolesForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.name FROM user_role ur JOIN role r ON r.id = ur.role_id
		WHERE ur.user_id = $1 ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) AssignRole(ctx context.Context, userID, role string) error {
	if strings.TrimSpace(role) == "" {
		return repository.ErrInvalidInput
	}
	return assignRole(ctx, s.db, userID, role)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// assignRole crea el rol en el catálogo si falta y lo asigna (idempotente).
func assignRole(ctx context.Context, db execer, userID, role string) error {
	if _, err := db.Exec(ctx,
		`INSERT INTO role (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		"role-"+strings.ToLower(role), role,
	); err != nil {
		return mapError(err)
	}
	_, err := db.Exec(ctx, `
		INSERT INTO user_role (user_id, role_id)
		SELECT $1, id FROM role WHERE name = $2
		ON CONFLICT DO NOTHING`, userID, role)
	return mapError(err)
}

func (s *Store) GetTenantByID(ctx context.Context, id string) (*repository.Tenant, error) {
	var t repository.Tenant
	err := s.db.QueryRow(ctx,
		`SELECT id, name, created_at, last_modified FROM tenant WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.LastModified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) CreateTenantForUser(ctx context.Context, userID, name string) (*repository.Tenant, error) {
	if strings.TrimSpace(name) == "" {
		return nil, repository.ErrInvalidInput
	}
	now := s.now()
	t := repository.Tenant{ID: uuid.NewString(), Name: name, CreatedAt: now, LastModified: now}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO tenant (id, name, created_at, last_modified) VALUES ($1, $2, $3, $4)`,
		t.ID, t.Name, t.CreatedAt, t.LastModified,
	); err != nil {
		return nil, mapError(err)
	}
	tag, err := tx.Exec(ctx,
		`UPDATE app_user SET tenant_id = $2, last_modified = $3 WHERE id = $1`,
		userID, t.ID, now,
	)
	if err != nil {
		return nil, mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, repository.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &t, nil
}

// mapError traduce códigos SQLSTATE a errores del dominio.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return repository.Conflictf("constraint %s", pgErr.ConstraintName)
		case "23503":
			return repository.NotFoundf("constraint %s", pgErr.ConstraintName)
		}
	}
	return err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
