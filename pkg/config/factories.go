package config

import (
	"context"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"

	"github.com/mschuler/nwebdav/internal/logger"
	"github.com/mschuler/nwebdav/pkg/lock"
	lockbadger "github.com/mschuler/nwebdav/pkg/lock/badger"
	lockmemory "github.com/mschuler/nwebdav/pkg/lock/memory"
	"github.com/mschuler/nwebdav/pkg/registry"
	"github.com/mschuler/nwebdav/pkg/store/disk"
)

// badgerLockOptions are the badger-specific settings carried in the
// locks options map.
type badgerLockOptions struct {
	// Path is the directory where BadgerDB stores its files.
	Path string `mapstructure:"path"`
}

// decodeBadgerLockOptions decodes the generic options map for the
// badger lock manager.
func decodeBadgerLockOptions(options map[string]any) (*badgerLockOptions, error) {
	var opts badgerLockOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("invalid badger lock options: %w", err)
	}
	return &opts, nil
}

// BuildLockManager creates the lock manager selected by the
// configuration.
//
// The caller owns the returned manager and must Close() it on shutdown.
func BuildLockManager(ctx context.Context, cfg *Config) (lock.Manager, error) {
	switch cfg.Locks.Type {
	case "memory":
		logger.Debug("Using in-memory lock manager")
		return lockmemory.New(), nil

	case "badger":
		opts, err := decodeBadgerLockOptions(cfg.Locks.Options)
		if err != nil {
			return nil, err
		}
		logger.Debug("Using BadgerDB lock manager at %s", opts.Path)
		mgr, err := lockbadger.New(ctx, lockbadger.Config{DBPath: opts.Path})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger lock manager: %w", err)
		}
		return mgr, nil

	default:
		return nil, fmt.Errorf("unknown lock manager type: %s", cfg.Locks.Type)
	}
}

// BuildRegistry creates the mount registry from the configuration: one
// disk store per mount, all sharing the given lock manager.
//
// Mount directories are created if missing so a fresh install starts
// without manual setup.
func BuildRegistry(cfg *Config, locks lock.Manager) (*registry.Registry, error) {
	reg := registry.New()

	for i, mountCfg := range cfg.Mounts {
		if err := os.MkdirAll(mountCfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("mounts[%d]: failed to create directory %s: %w", i, mountCfg.Path, err)
		}

		prefix := registry.NormalizePrefix(mountCfg.Prefix)

		// Lock paths are mount-relative, so each mount gets its own
		// prefixed view of the shared manager; without it a lock on
		// /a.txt under one mount would cover /a.txt under every mount.
		st, err := disk.New(mountCfg.Path, lock.WithPrefix(locks, prefix))
		if err != nil {
			return nil, fmt.Errorf("mounts[%d]: failed to create store: %w", i, err)
		}

		mount := &registry.Mount{
			Name:     mountCfg.Name,
			Prefix:   prefix,
			Store:    st,
			ReadOnly: mountCfg.ReadOnly,
		}
		if err := reg.AddMount(mount); err != nil {
			return nil, fmt.Errorf("mounts[%d]: %w", i, err)
		}

		logger.Info("Mounted %s at %s (read_only=%v)", mountCfg.Path, mount.Prefix, mountCfg.ReadOnly)
	}

	return reg, nil
}
