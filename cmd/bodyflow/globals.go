package main

import (
	"fmt"
	"runtime"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/ozontech/bodyflow/config"
	"github.com/ozontech/bodyflow/consts"
	"github.com/ozontech/bodyflow/flow/policy"
)

type Globals struct {
	Verbose bool   `help:"Verbose output."`
	Config  string `help:"YAML or JSON config file." type:"existingfile"`

	Prefetch       string `group:"flow" placeholder:"16" help:"Chunks requested up front when streaming."`
	PrefetchFactor string `group:"flow" placeholder:"50" help:"Percent of the prefetch consumed before requesting more."`
}

func (g *Globals) logger() *zap.Logger {
	if g.Verbose {
		return zap.Must(zap.NewDevelopment())
	}
	return zap.NewNop()
}

// source layers flags over the config file over BODYFLOW_* environment.
func (g *Globals) source() (config.Source, error) {
	flags := config.Map{}
	if g.Prefetch != "" {
		flags[consts.PrefetchKey] = g.Prefetch
	}
	if g.PrefetchFactor != "" {
		flags[consts.PrefetchFactorKey] = g.PrefetchFactor
	}

	var file config.Source
	if g.Config != "" {
		m, err := config.LoadFile(g.Config)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		file = m
	}
	return config.Layered(flags, file, config.Env(consts.EnvPrefix)), nil
}

func (g *Globals) setup() (*zap.Logger, *policy.Policy, error) {
	log := g.logger()
	src, err := g.source()
	if err != nil {
		return nil, nil, err
	}
	pol := policy.New(src, log)
	log.Debug("flow policy",
		zap.Int("prefetch", pol.Prefetch()),
		zap.Int("prefetch-factor", pol.PrefetchFactor()),
	)
	return log, pol, nil
}

func memStats(log *zap.Logger) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	log.Info(
		"memory stats",
		zap.String("alloc", humanize.IBytes(m.Alloc)),
		zap.String("total-alloc", humanize.IBytes(m.TotalAlloc)),
		zap.String("sys", humanize.IBytes(m.Sys)),
		zap.String("heap-inuse", humanize.IBytes(m.HeapInuse)),
		zap.Uint64("heap-objects", m.HeapObjects),
		zap.Uint32("num-gc", m.NumGC),
	)
}
