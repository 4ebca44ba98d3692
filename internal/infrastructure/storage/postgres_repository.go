package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/repository"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS device_configs (
	device_id        TEXT PRIMARY KEY,
	window_seconds   INTEGER NOT NULL,
	stake_limit      DOUBLE PRECISION NOT NULL,
	hot_percentage   INTEGER NOT NULL,
	cooldown_seconds INTEGER NOT NULL,
	blocked_until    TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS stake_events (
	ticket_id TEXT PRIMARY KEY,
	device_id TEXT NOT NULL,
	amount    DOUBLE PRECISION NOT NULL,
	ts        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stake_events_device_ts ON stake_events(device_id, ts DESC);
`

// uniqueViolation is the Postgres error code for duplicate keys.
const uniqueViolation = "23505"

// PostgresRepository implements both the ConfigStore and StakeLedger
// interfaces on a single Postgres database. Configuration rows are upserted
// in place; stake events are append-only with the ticket id as primary key,
// which makes the ledger insert an atomic insert-if-absent.
type PostgresRepository struct {
	db *sql.DB
}

// PostgresConfig holds connection settings for the durable store.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// NewPostgresRepository opens the database, verifies connectivity, and
// ensures the schema exists.
func NewPostgresRepository(cfg PostgresConfig) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// Ensure PostgresRepository implements both required interfaces
var _ repository.ConfigStore = (*PostgresRepository)(nil)
var _ repository.StakeLedger = (*PostgresRepository)(nil)

// ConfigStore interface implementation

func (r *PostgresRepository) FindByDeviceID(ctx context.Context, deviceID string) (*model.DeviceConfig, error) {
	query := `
		SELECT device_id, window_seconds, stake_limit, hot_percentage,
		       cooldown_seconds, blocked_until, created_at, updated_at
		FROM device_configs
		WHERE device_id = $1
	`
	cfg, err := scanConfig(r.db.QueryRowContext(ctx, query, deviceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, model.NewStoreUnavailableError("find device config", err)
	}
	return cfg, nil
}

func (r *PostgresRepository) Create(ctx context.Context, cfg *model.DeviceConfig) error {
	query := `
		INSERT INTO device_configs (
			device_id, window_seconds, stake_limit, hot_percentage,
			cooldown_seconds, blocked_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		cfg.DeviceID,
		cfg.WindowSeconds,
		cfg.StakeLimit,
		cfg.HotPercentage,
		cfg.CooldownSeconds,
		cfg.BlockedUntil,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return model.NewDuplicateDeviceError(cfg.DeviceID)
	}
	if err != nil {
		return model.NewStoreUnavailableError("create device config", err)
	}
	return nil
}

func (r *PostgresRepository) UpsertByDeviceID(ctx context.Context, cfg *model.DeviceConfig) (*model.DeviceConfig, error) {
	query := `
		INSERT INTO device_configs (
			device_id, window_seconds, stake_limit, hot_percentage,
			cooldown_seconds, blocked_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (device_id) DO UPDATE SET
			window_seconds   = EXCLUDED.window_seconds,
			stake_limit      = EXCLUDED.stake_limit,
			hot_percentage   = EXCLUDED.hot_percentage,
			cooldown_seconds = EXCLUDED.cooldown_seconds,
			blocked_until    = EXCLUDED.blocked_until,
			updated_at       = EXCLUDED.updated_at
		RETURNING device_id, window_seconds, stake_limit, hot_percentage,
		          cooldown_seconds, blocked_until, created_at, updated_at
	`
	now := cfg.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}
	stored, err := scanConfig(r.db.QueryRowContext(ctx, query,
		cfg.DeviceID,
		cfg.WindowSeconds,
		cfg.StakeLimit,
		cfg.HotPercentage,
		cfg.CooldownSeconds,
		cfg.BlockedUntil,
		now,
	))
	if err != nil {
		return nil, model.NewStoreUnavailableError("upsert device config", err)
	}
	return stored, nil
}

// SetBlockedUntil updates the blocking columns in place. The evaluator's
// config snapshot may be a cached copy, so writing it back wholesale would
// revert concurrent configuration changes; this touches only blocked_until.
func (r *PostgresRepository) SetBlockedUntil(ctx context.Context, deviceID string, until time.Time) (*model.DeviceConfig, error) {
	query := `
		UPDATE device_configs
		SET blocked_until = $2, updated_at = NOW()
		WHERE device_id = $1
		RETURNING device_id, window_seconds, stake_limit, hot_percentage,
		          cooldown_seconds, blocked_until, created_at, updated_at
	`
	stored, err := scanConfig(r.db.QueryRowContext(ctx, query, deviceID, until))
	if err == sql.ErrNoRows {
		return nil, model.NewDeviceNotFoundError(deviceID)
	}
	if err != nil {
		return nil, model.NewStoreUnavailableError("set blocked until", err)
	}
	return stored, nil
}

func (r *PostgresRepository) DeleteByDeviceID(ctx context.Context, deviceID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM device_configs WHERE device_id = $1`, deviceID)
	if err != nil {
		return false, model.NewStoreUnavailableError("delete device config", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, model.NewStoreUnavailableError("delete device config", err)
	}
	return affected > 0, nil
}

func (r *PostgresRepository) FindMany(ctx context.Context, filter model.DeviceFilter, opts model.ListOptions) ([]*model.DeviceConfig, error) {
	where, args := buildDeviceFilter(filter)
	query := fmt.Sprintf(`
		SELECT device_id, window_seconds, stake_limit, hot_percentage,
		       cooldown_seconds, blocked_until, created_at, updated_at
		FROM device_configs
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, where, sortColumn(opts.SortBy), sortDirection(opts.SortOrder), len(args)+1, len(args)+2)

	offset := (opts.Page - 1) * opts.Limit
	args = append(args, opts.Limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.NewStoreUnavailableError("list device configs", err)
	}
	defer rows.Close()

	var results []*model.DeviceConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, model.NewStoreUnavailableError("list device configs", err)
		}
		results = append(results, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStoreUnavailableError("list device configs", err)
	}
	return results, nil
}

func (r *PostgresRepository) Count(ctx context.Context, filter model.DeviceFilter) (int64, error) {
	where, args := buildDeviceFilter(filter)
	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM device_configs `+where, args...).Scan(&total)
	if err != nil {
		return 0, model.NewStoreUnavailableError("count device configs", err)
	}
	return total, nil
}

// StakeLedger interface implementation

// Insert appends the event. ON CONFLICT DO NOTHING on the ticket-id primary
// key makes the insert atomic under concurrent duplicate submissions: exactly
// one row lands, the losers get a duplicate-ticket error.
func (r *PostgresRepository) Insert(ctx context.Context, event *model.StakeEvent) error {
	query := `
		INSERT INTO stake_events (ticket_id, device_id, amount, ts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ticket_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, event.TicketID, event.DeviceID, event.Amount, event.Timestamp)
	if err != nil {
		return model.NewStoreUnavailableError("insert stake event", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.NewStoreUnavailableError("insert stake event", err)
	}
	if affected == 0 {
		return model.NewDuplicateTicketError(event.TicketID)
	}
	return nil
}

func (r *PostgresRepository) ExistsByTicketID(ctx context.Context, ticketID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM stake_events WHERE ticket_id = $1)`, ticketID).Scan(&exists)
	if err != nil {
		return false, model.NewStoreUnavailableError("check ticket exists", err)
	}
	return exists, nil
}

func (r *PostgresRepository) FindByDeviceSince(ctx context.Context, deviceID string, since time.Time) ([]*model.StakeEvent, error) {
	query := `
		SELECT ticket_id, device_id, amount, ts
		FROM stake_events
		WHERE device_id = $1 AND ts >= $2
		ORDER BY ts
	`
	rows, err := r.db.QueryContext(ctx, query, deviceID, since)
	if err != nil {
		return nil, model.NewStoreUnavailableError("query stake events", err)
	}
	defer rows.Close()

	var results []*model.StakeEvent
	for rows.Next() {
		ev := new(model.StakeEvent)
		if err := rows.Scan(&ev.TicketID, &ev.DeviceID, &ev.Amount, &ev.Timestamp); err != nil {
			return nil, model.NewStoreUnavailableError("query stake events", err)
		}
		results = append(results, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStoreUnavailableError("query stake events", err)
	}
	return results, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanConfig(row scanner) (*model.DeviceConfig, error) {
	cfg := new(model.DeviceConfig)
	var blockedUntil sql.NullTime
	if err := row.Scan(
		&cfg.DeviceID,
		&cfg.WindowSeconds,
		&cfg.StakeLimit,
		&cfg.HotPercentage,
		&cfg.CooldownSeconds,
		&blockedUntil,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if blockedUntil.Valid {
		t := blockedUntil.Time
		cfg.BlockedUntil = &t
	}
	return cfg, nil
}

func buildDeviceFilter(filter model.DeviceFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.DeviceID != "" {
		add("device_id = $%d", filter.DeviceID)
	}
	if filter.MinStakeLimit > 0 {
		add("stake_limit >= $%d", filter.MinStakeLimit)
	}
	if filter.MaxStakeLimit > 0 {
		add("stake_limit <= $%d", filter.MaxStakeLimit)
	}
	if filter.BlockedOnly {
		clauses = append(clauses, "blocked_until IS NOT NULL AND blocked_until > NOW()")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// sortColumn whitelists sortable columns; anything else sorts by device id.
func sortColumn(sortBy string) string {
	switch sortBy {
	case "stakeLimit":
		return "stake_limit"
	case "windowSeconds":
		return "window_seconds"
	case "createdAt":
		return "created_at"
	case "updatedAt":
		return "updated_at"
	default:
		return "device_id"
	}
}

func sortDirection(order string) string {
	if order == "desc" {
		return "DESC"
	}
	return "ASC"
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == uniqueViolation
	}
	return false
}
