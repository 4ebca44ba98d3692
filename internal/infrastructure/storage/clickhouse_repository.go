package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/repository"
)

// ClickHouseRepository implements the DecisionArchive interface using
// ClickHouse as the backend. It is an analytical, append-only sink of
// evaluation outcomes; losing it costs reporting, never correctness.
type ClickHouseRepository struct {
	conn driver.Conn
}

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Timeout  int
}

func NewClickHouseRepository(cfg ClickHouseConfig) (*ClickHouseRepository, error) {
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: time.Duration(cfg.Timeout) * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	// Check the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if err := createTablesIfNotExist(conn); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &ClickHouseRepository{conn: conn}, nil
}

// Ensure ClickHouseRepository implements the DecisionArchive interface
var _ repository.DecisionArchive = (*ClickHouseRepository)(nil)

func createTablesIfNotExist(conn driver.Conn) error {
	return conn.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS stake_decisions (
			ticket_id String,
			device_id String,
			amount Float64,
			status String,
			total_stake Float64,
			evaluated_at DateTime,
			archived_at DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY (device_id, evaluated_at)
	`)
}

// ArchiveDecision records one evaluation outcome. Async insert keeps the hot
// path from waiting on the analytical store.
func (r *ClickHouseRepository) ArchiveDecision(ctx context.Context, d *model.Decision) error {
	query := `
		INSERT INTO stake_decisions (
			ticket_id, device_id, amount, status, total_stake, evaluated_at
		) VALUES (
			?, ?, ?, ?, ?, ?
		)
	`
	return r.conn.AsyncInsert(ctx, query, false,
		d.TicketID,
		d.DeviceID,
		d.Amount,
		string(d.Status),
		d.TotalStake,
		d.EvaluatedAt,
	)
}

// FindDecisionsSince retrieves archived outcomes after the given instant.
func (r *ClickHouseRepository) FindDecisionsSince(ctx context.Context, since time.Time) ([]*model.Decision, error) {
	query := `
		SELECT ticket_id, device_id, amount, status, total_stake, evaluated_at
		FROM stake_decisions
		WHERE evaluated_at >= ?
		ORDER BY evaluated_at
	`
	rows, err := r.conn.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.Decision
	for rows.Next() {
		d := new(model.Decision)
		var status string
		if err := rows.Scan(
			&d.TicketID,
			&d.DeviceID,
			&d.Amount,
			&status,
			&d.TotalStake,
			&d.EvaluatedAt,
		); err != nil {
			return nil, err
		}
		d.Status = model.Status(status)
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Close releases the connection.
func (r *ClickHouseRepository) Close() error {
	return r.conn.Close()
}
