package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"asha-medical/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to PostgreSQL using the pgx stdlib driver and verifies the
// connection with a ping.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.Schema,
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Health returns a snapshot of connection pool statistics alongside a ping
// result, for the health endpoint.
func Health(ctx context.Context, db *sql.DB) map[string]string {
	status := map[string]string{"status": "up"}

	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
		return status
	}

	stats := db.Stats()
	status["open_connections"] = fmt.Sprintf("%d", stats.OpenConnections)
	status["in_use"] = fmt.Sprintf("%d", stats.InUse)
	status["idle"] = fmt.Sprintf("%d", stats.Idle)

	return status
}
