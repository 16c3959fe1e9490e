package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/sells-group/appraisal-etl/internal/config"
	"github.com/sells-group/appraisal-etl/internal/db"
	"github.com/sells-group/appraisal-etl/internal/resilience"
	"go.uber.org/zap"
)

// openPool validates the configuration for command and connects to the
// destination database. Transient connection failures are retried only when
// database.connect_attempts is above 1.
func openPool(ctx context.Context, command string) (*pgxpool.Pool, error) {
	if err := cfg.Validate(command); err != nil {
		return nil, err
	}

	retry := connectRetry(cfg.Database)
	pool, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*pgxpool.Pool, error) {
		return db.Connect(ctx, cfg.Database.ConnString(), poolOptions(cfg.Database))
	})
	if err != nil {
		return nil, eris.Wrapf(err, "%s: connect", command)
	}

	zap.L().Info("connected to database",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Name),
	)
	return pool, nil
}

func poolOptions(d config.DatabaseConfig) db.PoolOptions {
	return db.PoolOptions{
		PoolSize:    int32(d.PoolSize),
		MaxOverflow: int32(d.MaxOverflow),
		Recycle:     time.Duration(d.RecycleSecs) * time.Second,
	}
}

func connectRetry(d config.DatabaseConfig) resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	rc.MaxAttempts = max(d.ConnectAttempts, 1)
	rc.OnRetry = resilience.RetryLogger("connect")
	return rc
}
