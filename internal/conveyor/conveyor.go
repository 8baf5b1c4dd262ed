// Package conveyor copies staged datafiles into a storage box once their
// metadata has been ingested.
package conveyor

import (
	"context"
	"path"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/foundry/internal/storage"
	"github.com/agentstation/foundry/pkg/constants"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/ingest"
	"github.com/agentstation/foundry/pkg/logging"
	"github.com/agentstation/foundry/pkg/records"
)

// Outcome labels a single file transfer.
type Outcome string

// Transfer outcomes.
const (
	Transferred Outcome = "transferred"
	Skipped     Outcome = "skipped"
	Failed      Outcome = "failed"
)

// Observer is called once per file.
type Observer func(outcome Outcome, bytes int64)

// Conveyor transfers files from the staging area to a storage box.
type Conveyor struct {
	box         storage.Box
	src         afero.Fs
	stagingRoot string
	concurrency int
	observer    Observer
}

// Option configures a Conveyor.
type Option func(*Conveyor)

// WithConcurrency bounds the number of parallel transfers.
func WithConcurrency(n int) Option {
	return func(c *Conveyor) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithObserver registers a per-file callback.
func WithObserver(o Observer) Option {
	return func(c *Conveyor) {
		c.observer = o
	}
}

// New creates a Conveyor reading staged files under stagingRoot on src.
func New(box storage.Box, src afero.Fs, stagingRoot string, opts ...Option) *Conveyor {
	c := &Conveyor{
		box:         box,
		src:         src,
		stagingRoot: stagingRoot,
		concurrency: constants.MaxConcurrentTransfers,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Box returns the destination storage box.
func (c *Conveyor) Box() storage.Box {
	return c.box
}

// Transfer copies every datafile replica located in the conveyor's box.
// Replicas already present with the expected size are skipped. Individual
// failures are recorded in the result; only cancellation returns an error.
func (c *Conveyor) Transfer(ctx context.Context, files []records.Datafile) (*ingest.TransferResult, error) {
	logger := logging.FromContext(ctx).With().Str("storage_box", c.box.Name()).Logger()
	result := &ingest.TransferResult{Failed: []string{}}
	var mu sync.Mutex

	record := func(outcome Outcome, key string, n int64) {
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case Transferred:
			result.Transferred++
			result.Bytes += n
		case Skipped:
			result.Skipped++
		case Failed:
			result.Failed = append(result.Failed, key)
		}
		if c.observer != nil {
			c.observer(outcome, n)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i := range files {
		df := &files[i]
		for _, replica := range df.Replicas {
			if replica.Location != c.box.Name() {
				continue
			}
			key := replica.URI
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				outcome, n, err := c.transferOne(gctx, key, df.Size, df.Mimetype)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					logger.Error().Err(err).Str("key", key).Msg("Transfer failed")
				} else {
					logger.Debug().Str("key", key).Str("outcome", string(outcome)).Str("size", humanize.Bytes(uint64(max(n, 0)))).Msg("Datafile transfer")
				}
				record(outcome, key, n)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return result, errors.WrapResource("transfer", "datafiles", c.box.Name(), err)
	}

	logger.Info().
		Int("transferred", result.Transferred).
		Int("skipped", result.Skipped).
		Int("failed", len(result.Failed)).
		Str("bytes", humanize.Bytes(uint64(max(result.Bytes, 0)))).
		Msg("Datafile transfer complete")
	return result, nil
}

func (c *Conveyor) transferOne(ctx context.Context, key string, size int64, mimetype string) (Outcome, int64, error) {
	info, err := c.box.Stat(ctx, key)
	if err != nil {
		return Failed, 0, err
	}
	if info.Exists && info.Size == size {
		return Skipped, 0, nil
	}

	source := path.Join(c.stagingRoot, key)
	f, err := c.src.Open(source)
	if err != nil {
		return Failed, 0, errors.WrapIO("open", source, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Failed, 0, errors.WrapIO("stat", source, err)
	}
	if err := c.box.Put(ctx, key, f, fi.Size(), mimetype); err != nil {
		return Failed, 0, err
	}
	return Transferred, fi.Size(), nil
}
