// Command drifttail follows a driftlog store and prints matching events to
// stdout as JSON lines, one event per line.
//
//	drifttail -url ws://localhost:4454 article article:how-to-plant-a-tree
//
// Positional arguments form a tag conjunction; with none, every event is
// printed. -resume names a durable checkpoint so a restarted tail continues
// exactly where it stopped, -new skips history and follows fresh events
// only.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/driftlog/driftlog-go/adapters/websocket"
	"github.com/driftlog/driftlog-go/core/es"
	"github.com/driftlog/driftlog-go/core/tags"
	"github.com/driftlog/driftlog-go/ports/kv"
)

type options struct {
	url      string
	local    bool
	fromNow  bool
	resume   string
	stateDir string
	labels   []string
}

func main() {
	var opts options
	flag.StringVar(&opts.url, "url", "ws://localhost:4454", "store endpoint")
	flag.BoolVar(&opts.local, "local", false, "only events authored by the serving node")
	flag.BoolVar(&opts.fromNow, "new", false, "skip history, follow new events only")
	flag.StringVar(&opts.resume, "resume", "", "checkpoint name, continues across restarts")
	flag.StringVar(&opts.stateDir, "state", defaultStateDir(), "directory for resume checkpoints")
	flag.Parse()
	opts.labels = flag.Args()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := run(ctx, log, opts); err != nil {
		log.Error("drifttail failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func defaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "drifttail")
	}
	return filepath.Join(os.TempDir(), "drifttail")
}

func run(ctx context.Context, log *slog.Logger, opts options) error {
	store, err := websocket.NewStore(websocket.StoreConfig{
		URL: opts.url,
		Log: log,
		OnConnectionLost: func(err error) {
			log.Warn("connection lost", slog.Any("error", err))
		},
	})
	if err != nil {
		return err
	}
	defer store.Close()

	var where tags.Where
	if len(opts.labels) > 0 || opts.local {
		sel := tags.NewTags(opts.labels...)
		if opts.local {
			sel = sel.Local()
		}
		where = sel.Where()
	}

	query := es.LiveQuery{Where: where}

	var cps *es.CheckpointStore
	var cp es.Checkpoint
	switch {
	case opts.resume != "":
		kvStore, err := kv.NewFileStore(opts.stateDir)
		if err != nil {
			return fmt.Errorf("open state dir: %w", err)
		}
		cps = es.NewCheckpointStore(kvStore)
		cp, err = cps.Load(ctx, opts.resume)
		if err != nil {
			return err
		}
		query.Lower = cp.Offsets
		query.MinKey = cp.LastKey
	case opts.fromNow:
		res, err := store.Offsets(ctx)
		if err != nil {
			return fmt.Errorf("read present offsets: %w", err)
		}
		query.Lower = res.Present
	}

	sub, err := store.AllEvents(ctx, query)
	if err != nil {
		return err
	}
	defer sub.Cancel()

	enc := json.NewEncoder(os.Stdout)
	for chunk := range sub.Chan() {
		for _, ev := range chunk {
			if err := enc.Encode(ev); err != nil {
				return err
			}
			cp.Observe(ev)
		}
		if cps != nil {
			// Save with a fresh context so the last chunk before a
			// shutdown signal still reaches disk.
			if err := cps.Save(context.Background(), opts.resume, cp); err != nil {
				return err
			}
		}
	}
	return sub.Err()
}
