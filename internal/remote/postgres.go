package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const insertChannel = "website_content_inserts"

// OpenPool connects to Postgres and verifies the connection.
func OpenPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// Postgres stores snapshots in website_content and feeds inserts through
// LISTEN/NOTIFY.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) FetchLatest(ctx context.Context) (Snapshot, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id::text, origin, content, created_at
		FROM website_content
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	`)
	snapshot, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch latest snapshot: %w", err)
	}
	return snapshot, nil
}

func (p *Postgres) fetchByID(ctx context.Context, id string) (Snapshot, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id::text, origin, content, created_at
		FROM website_content
		WHERE id = $1
	`, id)
	snapshot, err := scanSnapshot(row)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch snapshot %s: %w", id, err)
	}
	return snapshot, nil
}

func (p *Postgres) InsertSnapshot(ctx context.Context, origin string, content json.RawMessage) (Snapshot, error) {
	id := uuid.NewString()
	var createdAt time.Time
	err := p.pool.QueryRow(ctx, `
		INSERT INTO website_content (id, origin, content)
		VALUES ($1, $2, $3::jsonb)
		RETURNING created_at
	`, id, origin, string(content)).Scan(&createdAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	return Snapshot{ID: id, Origin: origin, Content: content, CreatedAt: createdAt}, nil
}

func (p *Postgres) SubscribeInserts(ctx context.Context, fn func(Snapshot)) (func(), error) {
	pooled, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	// The listening connection is held for the life of the subscription,
	// so take it out of the pool.
	conn := pooled.Hijack()
	if _, err := conn.Exec(ctx, "LISTEN "+insertChannel); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("listen %s: %w", insertChannel, err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Close(context.Background())
		for {
			notification, err := conn.WaitForNotification(listenCtx)
			if err != nil {
				if listenCtx.Err() == nil {
					log.WithError(err).Warn("postgres insert feed stopped")
				}
				return
			}
			snapshot, err := p.fetchByID(listenCtx, notification.Payload)
			if err != nil {
				log.WithError(err).WithField("snapshot_id", notification.Payload).Warn("skipping insert notification")
				continue
			}
			fn(snapshot)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var (
		snapshot Snapshot
		content  []byte
	)
	if err := row.Scan(&snapshot.ID, &snapshot.Origin, &content, &snapshot.CreatedAt); err != nil {
		return Snapshot{}, err
	}
	snapshot.Content = json.RawMessage(content)
	return snapshot, nil
}
