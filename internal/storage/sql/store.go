package sql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/storage"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE or PRIMARY KEY violation
// for any of the supported drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the database without running migrations.
// Supported drivers are sqlite3, postgres (lib/pq) and pgx.
func Open(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if driver == "sqlite3" {
		// SQLite pragmas are per connection, and every :memory: connection
		// is a separate database.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	return &Store{db: db, driver: driver}, nil
}

// New connects to the database and applies all pending migrations.
func New(driver, dsn string) (*Store, error) {
	s, err := Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(context.Background()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies all pending migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(s.dialect()); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db.DB, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// MigrationVersion returns the current schema version.
func (s *Store) MigrationVersion(ctx context.Context) (int64, error) {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(s.dialect()); err != nil {
		return 0, fmt.Errorf("setting goose dialect: %w", err)
	}
	return goose.GetDBVersionContext(ctx, s.db.DB)
}

func (s *Store) dialect() string {
	if s.driver == "pgx" {
		return "postgres"
	}
	return s.driver
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, driver: s.driver}, nil
}

// Tx wraps a database transaction.
type Tx struct {
	tx     *sqlx.Tx
	driver string
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Close is a no-op for transactions (they should be committed or rolled back).
func (t *Tx) Close() error {
	return nil
}

// BeginTx is not supported within a transaction.
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

// helper to get the correct database interface
type dbInterface interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func rowsAffected(result sql.Result) int {
	n, _ := result.RowsAffected()
	return int(n)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// ============================================
// Users
// ============================================

const userColumns = `id, email, password_hash, created_at, updated_at`

func createUser(ctx context.Context, db dbInterface, user *domain.User) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	return createUser(ctx, s.db, user)
}

func (t *Tx) CreateUser(ctx context.Context, user *domain.User) error {
	return createUser(ctx, t.tx, user)
}

func getUser(ctx context.Context, db dbInterface, id string) (*domain.User, error) {
	var user domain.User
	err := db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, s.db, id)
}

func (t *Tx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, t.tx, id)
}

func getUserByEmail(ctx context.Context, db dbInterface, email string) (*domain.User, error) {
	var user domain.User
	err := db.GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return getUserByEmail(ctx, s.db, email)
}

func (t *Tx) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return getUserByEmail(ctx, t.tx, email)
}

func updateUserPassword(ctx context.Context, db dbInterface, id, passwordHash string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, now(), id)
	if err != nil {
		return err
	}
	if rowsAffected(result) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return updateUserPassword(ctx, s.db, id, passwordHash)
}

func (t *Tx) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return updateUserPassword(ctx, t.tx, id, passwordHash)
}

// ============================================
// API Keys
// ============================================

const apiKeyColumns = `id, user_id, name, key_hash, key_prefix, created_at, last_used_at`

func createAPIKey(ctx context.Context, db dbInterface, key *domain.APIKey) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, created_at, last_used_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt, key.LastUsedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return createAPIKey(ctx, s.db, key)
}

func (t *Tx) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return createAPIKey(ctx, t.tx, key)
}

func getAPIKeyByHash(ctx context.Context, db dbInterface, keyHash string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := db.GetContext(ctx, &key,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = $1`, keyHash)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return getAPIKeyByHash(ctx, s.db, keyHash)
}

func (t *Tx) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return getAPIKeyByHash(ctx, t.tx, keyHash)
}

func listAPIKeys(ctx context.Context, db dbInterface, userID string) ([]*domain.APIKey, error) {
	keys := []*domain.APIKey{}
	err := db.SelectContext(ctx, &keys,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	return listAPIKeys(ctx, s.db, userID)
}

func (t *Tx) ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	return listAPIKeys(ctx, t.tx, userID)
}

func deleteAPIKey(ctx context.Context, db dbInterface, userID, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if rowsAffected(result) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, userID, id string) error {
	return deleteAPIKey(ctx, s.db, userID, id)
}

func (t *Tx) DeleteAPIKey(ctx context.Context, userID, id string) error {
	return deleteAPIKey(ctx, t.tx, userID, id)
}

func updateAPIKeyLastUsed(ctx context.Context, db dbInterface, id string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, now(), id)
	return err
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	return updateAPIKeyLastUsed(ctx, s.db, id)
}

func (t *Tx) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	return updateAPIKeyLastUsed(ctx, t.tx, id)
}

func countAPIKeys(ctx context.Context, db dbInterface) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM api_keys`)
	return count, err
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	return countAPIKeys(ctx, s.db)
}

func (t *Tx) CountAPIKeys(ctx context.Context) (int, error) {
	return countAPIKeys(ctx, t.tx)
}

// ============================================
// Password resets
// ============================================

func createPasswordReset(ctx context.Context, db dbInterface, reset *domain.PasswordReset) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO password_resets (token_hash, user_id, expires_at, used_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		reset.TokenHash, reset.UserID, reset.ExpiresAt, reset.UsedAt, reset.CreatedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreatePasswordReset(ctx context.Context, reset *domain.PasswordReset) error {
	return createPasswordReset(ctx, s.db, reset)
}

func (t *Tx) CreatePasswordReset(ctx context.Context, reset *domain.PasswordReset) error {
	return createPasswordReset(ctx, t.tx, reset)
}

func consumePasswordReset(ctx context.Context, db dbInterface, tokenHash string, at time.Time) (string, error) {
	var reset domain.PasswordReset
	err := db.GetContext(ctx, &reset,
		`SELECT token_hash, user_id, expires_at, used_at, created_at
		 FROM password_resets WHERE token_hash = $1`, tokenHash)
	if err == sql.ErrNoRows {
		return "", domain.ErrInvalidToken
	}
	if err != nil {
		return "", err
	}
	if reset.UsedAt != nil || !at.Before(reset.ExpiresAt) {
		return "", domain.ErrInvalidToken
	}

	result, err := db.ExecContext(ctx,
		`UPDATE password_resets SET used_at = $1 WHERE token_hash = $2 AND used_at IS NULL`,
		at, tokenHash)
	if err != nil {
		return "", err
	}
	if rowsAffected(result) == 0 {
		return "", domain.ErrInvalidToken
	}
	return reset.UserID, nil
}

func (s *Store) ConsumePasswordReset(ctx context.Context, tokenHash string, at time.Time) (string, error) {
	return consumePasswordReset(ctx, s.db, tokenHash, at)
}

func (t *Tx) ConsumePasswordReset(ctx context.Context, tokenHash string, at time.Time) (string, error) {
	return consumePasswordReset(ctx, t.tx, tokenHash, at)
}

// ============================================
// Queries
// ============================================

var queryColumnList = []string{
	"id", "query_text", "url", "impressions", "clicks", "ctr",
	"avg_position", "is_opportunity", "date", "created_at",
}

var queryColumns = strings.Join(queryColumnList, ", ")

// prefixedQueryColumns returns the query columns qualified with alias.
func prefixedQueryColumns(alias string) string {
	cols := make([]string, len(queryColumnList))
	for i, c := range queryColumnList {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func upsertQueries(ctx context.Context, db dbInterface, queries []*domain.Query) (int, error) {
	n := 0
	for _, q := range queries {
		createdAt := q.CreatedAt
		if createdAt.IsZero() {
			createdAt = now()
		}
		_, err := db.ExecContext(ctx,
			`INSERT INTO queries (`+queryColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (id) DO UPDATE SET
			   query_text = excluded.query_text,
			   url = excluded.url,
			   impressions = excluded.impressions,
			   clicks = excluded.clicks,
			   ctr = excluded.ctr,
			   avg_position = excluded.avg_position,
			   is_opportunity = excluded.is_opportunity,
			   date = excluded.date`,
			q.ID, q.QueryText, q.URL, q.Impressions, q.Clicks, q.CTR,
			q.AvgPosition, q.IsOpportunity, q.Date, createdAt)
		if err != nil {
			return n, fmt.Errorf("upserting query %s: %w", q.ID, err)
		}
		n++
	}
	return n, nil
}

func (s *Store) UpsertQueries(ctx context.Context, queries []*domain.Query) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	n, err := upsertQueries(ctx, tx, queries)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	return n, tx.Commit()
}

func (t *Tx) UpsertQueries(ctx context.Context, queries []*domain.Query) (int, error) {
	return upsertQueries(ctx, t.tx, queries)
}

func getQuery(ctx context.Context, db dbInterface, id string) (*domain.Query, error) {
	var q domain.Query
	err := db.GetContext(ctx, &q, `SELECT `+queryColumns+` FROM queries WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *Store) GetQuery(ctx context.Context, id string) (*domain.Query, error) {
	return getQuery(ctx, s.db, id)
}

func (t *Tx) GetQuery(ctx context.Context, id string) (*domain.Query, error) {
	return getQuery(ctx, t.tx, id)
}

// getQueries returns the existing queries among ids, in the order of ids.
func getQueries(ctx context.Context, db dbInterface, ids []string) ([]*domain.Query, error) {
	if len(ids) == 0 {
		return []*domain.Query{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+queryColumns+` FROM queries WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var found []*domain.Query
	if err := db.SelectContext(ctx, &found, db.Rebind(query), args...); err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Query, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	out := make([]*domain.Query, 0, len(found))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
			delete(byID, id)
		}
	}
	return out, nil
}

func (s *Store) GetQueries(ctx context.Context, ids []string) ([]*domain.Query, error) {
	return getQueries(ctx, s.db, ids)
}

func (t *Tx) GetQueries(ctx context.Context, ids []string) ([]*domain.Query, error) {
	return getQueries(ctx, t.tx, ids)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func listQueries(ctx context.Context, db dbInterface, filter domain.QueryFilter) ([]*domain.Query, int, error) {
	var where []string
	var args []any
	if search := strings.TrimSpace(filter.Search); search != "" {
		where = append(where, `LOWER(query_text) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(search))+"%")
	}
	if filter.OpportunityOnly {
		where = append(where, `is_opportunity = ?`)
		args = append(args, true)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.GetContext(ctx, &total, db.Rebind(`SELECT COUNT(*) FROM queries`+clause), args...); err != nil {
		return nil, 0, err
	}

	col := storage.SortColumn(filter.Sort)
	if col == "query_text" {
		col = "LOWER(query_text)"
	}
	dir := "ASC"
	if filter.Descending {
		dir = "DESC"
	}
	stmt := `SELECT ` + queryColumns + ` FROM queries` + clause +
		` ORDER BY ` + col + ` ` + dir + `, id ASC`

	offset := max(filter.Offset, 0)
	pageArgs := args
	if filter.Limit > 0 {
		stmt += ` LIMIT ? OFFSET ?`
		pageArgs = append(append([]any{}, args...), filter.Limit, offset)
	}

	queries := []*domain.Query{}
	if err := db.SelectContext(ctx, &queries, db.Rebind(stmt), pageArgs...); err != nil {
		return nil, 0, err
	}
	if filter.Limit <= 0 && offset > 0 {
		queries = storage.Page(queries, 0, offset)
	}
	return queries, total, nil
}

func (s *Store) ListQueries(ctx context.Context, filter domain.QueryFilter) ([]*domain.Query, int, error) {
	return listQueries(ctx, s.db, filter)
}

func (t *Tx) ListQueries(ctx context.Context, filter domain.QueryFilter) ([]*domain.Query, int, error) {
	return listQueries(ctx, t.tx, filter)
}

func listAllQueries(ctx context.Context, db dbInterface) ([]*domain.Query, error) {
	queries := []*domain.Query{}
	err := db.SelectContext(ctx, &queries, `SELECT `+queryColumns+` FROM queries ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return queries, nil
}

func (s *Store) ListAllQueries(ctx context.Context) ([]*domain.Query, error) {
	return listAllQueries(ctx, s.db)
}

func (t *Tx) ListAllQueries(ctx context.Context) ([]*domain.Query, error) {
	return listAllQueries(ctx, t.tx)
}

// ============================================
// Groups
// ============================================

const groupColumns = `id, user_id, name, ai_generated, created_at, updated_at`

func createGroup(ctx context.Context, db dbInterface, group *domain.Group) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO groups (id, user_id, name, ai_generated, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		group.ID, group.UserID, group.Name, group.AIGenerated, group.CreatedAt, group.UpdatedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreateGroup(ctx context.Context, group *domain.Group) error {
	return createGroup(ctx, s.db, group)
}

func (t *Tx) CreateGroup(ctx context.Context, group *domain.Group) error {
	return createGroup(ctx, t.tx, group)
}

func getGroup(ctx context.Context, db dbInterface, id string) (*domain.Group, error) {
	var group domain.Group
	err := db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *Store) GetGroup(ctx context.Context, id string) (*domain.Group, error) {
	return getGroup(ctx, s.db, id)
}

func (t *Tx) GetGroup(ctx context.Context, id string) (*domain.Group, error) {
	return getGroup(ctx, t.tx, id)
}

func listGroups(ctx context.Context, db dbInterface, userID string) ([]*domain.Group, error) {
	groups := []*domain.Group{}
	err := db.SelectContext(ctx, &groups,
		`SELECT `+groupColumns+` FROM groups WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *Store) ListGroups(ctx context.Context, userID string) ([]*domain.Group, error) {
	return listGroups(ctx, s.db, userID)
}

func (t *Tx) ListGroups(ctx context.Context, userID string) ([]*domain.Group, error) {
	return listGroups(ctx, t.tx, userID)
}

func updateGroup(ctx context.Context, db dbInterface, group *domain.Group) error {
	result, err := db.ExecContext(ctx,
		`UPDATE groups SET name = $1, ai_generated = $2, updated_at = $3 WHERE id = $4`,
		group.Name, group.AIGenerated, group.UpdatedAt, group.ID)
	if err != nil {
		return wrapUniqueError(err)
	}
	if rowsAffected(result) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateGroup(ctx context.Context, group *domain.Group) error {
	return updateGroup(ctx, s.db, group)
}

func (t *Tx) UpdateGroup(ctx context.Context, group *domain.Group) error {
	return updateGroup(ctx, t.tx, group)
}

func deleteGroup(ctx context.Context, db dbInterface, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM group_items WHERE group_id = $1`, id); err != nil {
		return err
	}
	result, err := db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rowsAffected(result) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	return deleteGroup(ctx, s.db, id)
}

func (t *Tx) DeleteGroup(ctx context.Context, id string) error {
	return deleteGroup(ctx, t.tx, id)
}

func deleteAllGroupsForUser(ctx context.Context, db dbInterface, userID string) (int, error) {
	_, err := db.ExecContext(ctx,
		`DELETE FROM group_items WHERE group_id IN (SELECT id FROM groups WHERE user_id = $1)`, userID)
	if err != nil {
		return 0, err
	}
	result, err := db.ExecContext(ctx, `DELETE FROM groups WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return rowsAffected(result), nil
}

func (s *Store) DeleteAllGroupsForUser(ctx context.Context, userID string) (int, error) {
	return deleteAllGroupsForUser(ctx, s.db, userID)
}

func (t *Tx) DeleteAllGroupsForUser(ctx context.Context, userID string) (int, error) {
	return deleteAllGroupsForUser(ctx, t.tx, userID)
}

// ============================================
// Group items
// ============================================

func touchGroup(ctx context.Context, db dbInterface, groupID string) error {
	_, err := db.ExecContext(ctx, `UPDATE groups SET updated_at = $1 WHERE id = $2`, now(), groupID)
	return err
}

func addGroupItems(ctx context.Context, db dbInterface, groupID string, queryIDs []string) (int, error) {
	if _, err := getGroup(ctx, db, groupID); err != nil {
		return 0, err
	}
	if len(queryIDs) == 0 {
		return 0, nil
	}

	existing, err := getQueries(ctx, db, queryIDs)
	if err != nil {
		return 0, err
	}
	unique := make(map[string]struct{}, len(queryIDs))
	for _, id := range queryIDs {
		unique[id] = struct{}{}
	}
	if len(existing) != len(unique) {
		return 0, domain.ErrNotFound
	}

	added := 0
	createdAt := now()
	for _, id := range queryIDs {
		result, err := db.ExecContext(ctx,
			`INSERT INTO group_items (group_id, query_id, created_at) VALUES ($1, $2, $3)
			 ON CONFLICT (group_id, query_id) DO NOTHING`,
			groupID, id, createdAt)
		if err != nil {
			return added, err
		}
		added += rowsAffected(result)
	}
	if added > 0 {
		if err := touchGroup(ctx, db, groupID); err != nil {
			return added, err
		}
	}
	return added, nil
}

func (s *Store) AddGroupItems(ctx context.Context, groupID string, queryIDs []string) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	added, err := addGroupItems(ctx, tx, groupID, queryIDs)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	return added, tx.Commit()
}

func (t *Tx) AddGroupItems(ctx context.Context, groupID string, queryIDs []string) (int, error) {
	return addGroupItems(ctx, t.tx, groupID, queryIDs)
}

func removeGroupItem(ctx context.Context, db dbInterface, groupID, queryID string) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM group_items WHERE group_id = $1 AND query_id = $2`, groupID, queryID)
	if err != nil {
		return err
	}
	if rowsAffected(result) == 0 {
		return domain.ErrNotFound
	}
	return touchGroup(ctx, db, groupID)
}

func (s *Store) RemoveGroupItem(ctx context.Context, groupID, queryID string) error {
	return removeGroupItem(ctx, s.db, groupID, queryID)
}

func (t *Tx) RemoveGroupItem(ctx context.Context, groupID, queryID string) error {
	return removeGroupItem(ctx, t.tx, groupID, queryID)
}

func listGroupQueries(ctx context.Context, db dbInterface, groupID string) ([]*domain.Query, error) {
	if _, err := getGroup(ctx, db, groupID); err != nil {
		return nil, err
	}
	queries := []*domain.Query{}
	err := db.SelectContext(ctx, &queries,
		`SELECT `+prefixedQueryColumns("q")+`
		 FROM queries q
		 JOIN group_items gi ON gi.query_id = q.id
		 WHERE gi.group_id = $1
		 ORDER BY LOWER(q.query_text), q.id`, groupID)
	if err != nil {
		return nil, err
	}
	return queries, nil
}

func (s *Store) ListGroupQueries(ctx context.Context, groupID string) ([]*domain.Query, error) {
	return listGroupQueries(ctx, s.db, groupID)
}

func (t *Tx) ListGroupQueries(ctx context.Context, groupID string) ([]*domain.Query, error) {
	return listGroupQueries(ctx, t.tx, groupID)
}

func countGroupItems(ctx context.Context, db dbInterface, groupID string) (int, error) {
	if _, err := getGroup(ctx, db, groupID); err != nil {
		return 0, err
	}
	var count int
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM group_items WHERE group_id = $1`, groupID)
	return count, err
}

func (s *Store) CountGroupItems(ctx context.Context, groupID string) (int, error) {
	return countGroupItems(ctx, s.db, groupID)
}

func (t *Tx) CountGroupItems(ctx context.Context, groupID string) (int, error) {
	return countGroupItems(ctx, t.tx, groupID)
}

var (
	_ storage.Storage     = (*Store)(nil)
	_ storage.Transaction = (*Tx)(nil)
)
