package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ozontech/bodyflow/collector"
	"github.com/ozontech/bodyflow/publisher"
)

type CollectCommand struct {
	Sources  []string      `arg:"" required:"" help:"URLs (http, https), file paths or - for stdin."`
	Charset  string        `default:"utf-8" help:"Charset of the bodies."`
	SizeOnly bool          `help:"Print body sizes instead of bodies."`
	Timeout  time.Duration `default:"30s" help:"Timeout for each body (10s, 2m...)."`

	out io.Writer
}

func (c *CollectCommand) Run(ctx context.Context, g *Globals) error {
	log, _, err := g.setup()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	enc, err := collector.LookupCharset(c.Charset)
	if err != nil {
		return err
	}
	client, err := newClient(c.Timeout)
	if err != nil {
		return err
	}
	out := c.out
	if out == nil {
		out = os.Stdout
	}

	bodies := make([][]byte, len(c.Sources))
	eg, ctx := errgroup.WithContext(ctx)
	for i, src := range c.Sources {
		eg.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, c.Timeout)
			defer cancel()

			body, err := openBody(ctx, client, src)
			if err != nil {
				return err
			}
			p := publisher.FromReader(body,
				publisher.WithContext(ctx),
				publisher.WithReaderLogger(log.With(zap.String("source", src))),
			)
			b, err := collector.CollectAsync(p, collector.WithLogger(log)).Get(ctx)
			if err != nil {
				return fmt.Errorf("collect %s: %w", src, err)
			}
			bodies[i] = b
			log.Debug("body collected", zap.String("source", src), zap.Int("size", len(b)))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, b := range bodies {
		if c.SizeOnly {
			fmt.Fprintf(out, "%s\t%s\n", humanize.Bytes(uint64(len(b))), c.Sources[i])
			continue
		}
		if len(bodies) > 1 {
			fmt.Fprintf(out, "==> %s <==\n", c.Sources[i])
		}
		s, err := collector.Decode(b, enc)
		if err != nil {
			return err
		}
		fmt.Fprint(out, s)
	}

	if g.Verbose {
		memStats(log)
	}
	return nil
}
