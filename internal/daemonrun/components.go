package daemonrun

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"shelfscan/internal/camera"
	"shelfscan/internal/config"
	"shelfscan/internal/decoder"
	"shelfscan/internal/inventory"
	"shelfscan/internal/lookup"
	"shelfscan/internal/session"
)

// Components are the collaborators shared by the daemon and the one-shot
// CLI commands.
type Components struct {
	Decoder    *decoder.Composite
	Repository inventory.Repository
	// Store is nil when the inventory is remote and history is disabled.
	Store   *inventory.Store
	Source  camera.Source
	Lookup  *lookup.Adapter
	Session *session.Session

	closers []io.Closer
}

// Build wires the decoder, inventory, camera source and session from cfg.
func Build(cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	formats, err := cfg.EnabledFormats()
	if err != nil {
		return nil, err
	}
	c := &Components{}

	c.Decoder = decoder.New(decoder.Options{
		Formats:   formats,
		MinWidth:  cfg.Scanner.MinWidth,
		MinHeight: cfg.Scanner.MinHeight,
		TryHarder: cfg.Scanner.TryHarder,
		Logger:    logger,
	})

	repo, closer, err := inventory.NewRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("open inventory: %w", err)
	}
	c.Repository = repo
	c.closers = append(c.closers, closer)
	if store, ok := repo.(*inventory.Store); ok {
		c.Store = store
	} else if cfg.Inventory.RecordHistory {
		store, err := inventory.Open(cfg)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("open history store: %w", err)
		}
		c.Store = store
		c.closers = append(c.closers, store)
	}

	source, err := camera.NewSource(cfg, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Source = source

	opts := lookup.Options{Timeout: cfg.LookupTimeout(), Logger: logger}
	// A nil *Store must not end up inside the interface.
	if cfg.Inventory.RecordHistory && c.Store != nil {
		opts.History = c.Store
	}
	c.Lookup = lookup.New(repo, opts)

	c.Session, err = session.New(session.Options{
		Decoder:  c.Decoder,
		Lookup:   c.Lookup,
		Source:   source,
		LockPath: cfg.DeviceLockPath,
		Logger:   logger,
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Close stops the session and releases the inventory backends.
func (c *Components) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Session != nil {
		errs = append(errs, c.Session.Stop())
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i].Close())
	}
	c.closers = nil
	return errors.Join(errs...)
}
