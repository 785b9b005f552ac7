package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"milesofsmiles/api/internal/bus"
	"milesofsmiles/api/internal/config"
	"milesofsmiles/api/internal/localstore"
	"milesofsmiles/api/internal/remote"
	"milesofsmiles/api/internal/search"
)

// runtime holds the stores a command runs against.
type runtime struct {
	local   *localstore.Store
	remote  remote.Store
	archive *remote.Archive
	bus     bus.Bus
	search  *search.Service
	// shared is false when events stay in this process.
	shared bool
}

// openRuntime opens every configured store. Only the local store is
// required; a remote, bus or search backend that cannot be reached is
// replaced by its in-process stand-in with a warning.
func openRuntime(ctx context.Context, cfg config.Config, migrate bool) (*runtime, error) {
	local, err := localstore.Open(cfg.LocalStorePath)
	if err != nil {
		return nil, err
	}
	rt := &runtime{local: local}

	rt.remote, err = openRemote(ctx, cfg, migrate)
	if err != nil {
		logrus.WithError(err).WithField("backend", cfg.RemoteBackend).Warn("remote store unavailable, running local only")
		rt.remote = remote.Noop{}
	}
	if cfg.ArchiveEnabled() {
		archive, err := remote.NewMinIOArchive(ctx, rt.remote, remote.ArchiveOptions{
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Bucket:    cfg.ArchiveBucket,
			UseSSL:    cfg.ArchiveUseSSL,
		})
		if err != nil {
			logrus.WithError(err).Warn("snapshot archive unavailable")
		} else {
			rt.archive = archive
			rt.remote = archive
		}
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisBus, err := bus.NewRedis(cfg.RedisURL, cfg.BusChannel)
		if err != nil {
			logrus.WithError(err).Warn("redis bus unavailable, events stay in process")
			rt.bus = bus.NewLocal()
		} else {
			rt.bus = redisBus
			rt.shared = true
		}
	} else {
		rt.bus = bus.NewLocal()
	}

	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	rt.search = search.NewService(meili)

	logrus.WithFields(logrus.Fields{
		"local":  cfg.LocalStorePath,
		"remote": rt.remote.Name(),
		"redis":  cfg.RedisURL != "",
		"meili":  meili != nil,
	}).Info("stores opened")
	return rt, nil
}

func openRemote(ctx context.Context, cfg config.Config, migrate bool) (remote.Store, error) {
	switch cfg.RemoteBackend {
	case "postgres":
		pool, err := remote.OpenPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := remote.ApplyMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return remote.NewPostgres(pool), nil
	case "mongo":
		return remote.NewMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
	default:
		return remote.Noop{}, nil
	}
}

// warnIfUnshared is called by commands that change content or the admin
// gate. Without Redis a running server keeps its in-memory copy and
// overwrites the change on its next edit.
func (rt *runtime) warnIfUnshared() {
	if rt.shared {
		return
	}
	logrus.Warn("no redis bus configured (MOS_REDIS_URL): running servers will not see this change until they restart")
}

func (rt *runtime) requireArchive() (*remote.Archive, error) {
	if rt.archive == nil {
		return nil, errors.New("snapshot archive is not configured (set MOS_ARCHIVE_ENDPOINT)")
	}
	return rt.archive, nil
}

func (rt *runtime) Close() {
	rt.search.Close()
	if err := rt.bus.Close(); err != nil {
		logrus.WithError(err).Warn("close bus")
	}
	if err := rt.remote.Close(); err != nil {
		logrus.WithError(err).Warn("close remote store")
	}
	if err := rt.local.Close(); err != nil {
		logrus.WithError(err).Warn("close local store")
	}
}
