package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/ozontech/bodyflow/flow/prefetch"
	"github.com/ozontech/bodyflow/publisher"
)

type StreamCommand struct {
	Source    string        `arg:"" required:"" help:"URL (http, https), file path or - for stdin."`
	ChunkSize int           `default:"16384" help:"Bytes read per chunk."`
	Timeout   time.Duration `default:"30s" help:"Connect and idle timeout (10s, 2m...)."`

	out io.Writer
}

func (c *StreamCommand) Run(ctx context.Context, g *Globals) error {
	log, pol, err := g.setup()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	client, err := newClient(c.Timeout)
	if err != nil {
		return err
	}
	out := c.out
	if out == nil {
		out = os.Stdout
	}

	body, err := openBody(ctx, client, c.Source)
	if err != nil {
		return err
	}
	p := publisher.FromReader(body,
		publisher.WithContext(ctx),
		publisher.WithChunkSize(c.ChunkSize),
		publisher.WithReaderLogger(log),
	)

	begin := time.Now()
	n, err := prefetch.Stream(p, out, pol, prefetch.WithLogger(log))
	if err != nil {
		return fmt.Errorf("stream %s: %w", c.Source, err)
	}
	log.Info("body streamed",
		zap.String("source", c.Source),
		zap.String("size", humanize.Bytes(uint64(n))),
		zap.Duration("took", time.Since(begin)),
	)

	if g.Verbose {
		memStats(log)
	}
	return nil
}
