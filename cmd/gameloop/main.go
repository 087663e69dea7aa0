package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"ticksched/internal/config"
	"ticksched/internal/eventbus"
	"ticksched/internal/journal"
	"ticksched/internal/runtime/supervisor"
	"ticksched/internal/task/scheduler"
	logx "ticksched/pkg/logx"
)

func main() {
	var cfgPath string
	var watch bool
	flag.StringVar(&cfgPath, "config", "", "path to config file (json or yaml); built-in defaults when empty")
	flag.BoolVar(&watch, "watch", false, "reload config on file change")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.Default()
	var mgr *config.Manager
	if cfgPath != "" {
		mgr = config.NewManager(cfgPath)
		c, err := mgr.Load()
		if err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
		cfg = c
	}

	logSvc, log := logx.New(logConfig(cfg))
	defer logSvc.Close()

	bus := eventbus.New()

	store, err := journal.Open(journal.Config{
		Enabled:     cfg.Journal.Enabled,
		Driver:      cfg.Journal.Driver,
		Path:        cfg.Journal.Path,
		BusyTimeout: cfg.JournalBusyTimeout(),
	}, log.With(logx.String("comp", "journal")))
	if err != nil {
		log.Error("journal open failed", logx.Err(err))
		os.Exit(1)
	}
	sup := supervisor.New(ctx, log.With(logx.String("comp", "supervisor")))

	if store != nil {
		defer store.Close()
		rec := journal.NewRecorder(store, bus, log.With(logx.String("comp", "journal")))
		sup.Go("journal.recorder", func(ctx context.Context) error {
			rec.Run(ctx)
			return nil
		})
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.Loop.FPS), 1)

	if watch && mgr == nil {
		log.Warn("-watch ignored: no -config file to watch")
	}
	if mgr != nil && watch {
		mgr.SetLogger(log.With(logx.String("comp", "config")))
		sup.Go("config.watch", mgr.Watch)

		sub := mgr.Subscribe(1)
		defer mgr.Unsubscribe(sub)
		sup.Go("config.apply", func(ctx context.Context) error {
			prev := cfg
			for {
				select {
				case <-ctx.Done():
					return nil
				case c, ok := <-sub:
					if !ok {
						return nil
					}
					changed, attrs := config.SummarizeChange(prev, c)
					if len(changed) > 0 {
						log.Info("config applied", append(attrs, logx.Any("sections", changed))...)
					}
					logSvc.Apply(logConfig(c))
					limiter.SetLimit(rate.Limit(c.Loop.FPS))
					prev = c
				}
			}
		})
	}

	sched := scheduler.New(scheduler.Config{
		Capacity: cfg.Scheduler.Capacity,
		Workers:  cfg.Scheduler.Workers,
	}, log.With(logx.String("comp", "sched")), bus)

	var running atomic.Bool
	running.Store(true)

	// Demo workload: a burst of parallel greetings and a synchronous stop
	// task that ends the loop.
	for i := 0; i < 10; i++ {
		if err := sched.Add(5*time.Second, func() {
			time.Sleep(50 * time.Millisecond) // work simulation
			log.Info("hello from a parallel universe")
		}, scheduler.Parallel); err != nil {
			log.Warn("demo task rejected", logx.Err(err))
		}
	}
	if err := sched.Add(10*time.Second, func() { running.Store(false) }, scheduler.Synchronous); err != nil {
		log.Warn("stop task rejected", logx.Err(err))
	}

	frames := 0
	for running.Load() {
		if err := limiter.Wait(ctx); err != nil {
			// signal received
			break
		}
		sched.Tick()
		frames++
	}

	// A late long task demonstrates finish-pending semantics at shutdown.
	if err := sched.Add(30*time.Second, func() { log.Info("wait for me!") }, scheduler.Synchronous); err != nil {
		log.Warn("shutdown task rejected", logx.Err(err))
	}
	sched.Terminate(cfg.Loop.FinishPending)

	sup.Cancel()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := sup.Wait(waitCtx); err != nil {
		log.Warn("background goroutines did not stop in time", logx.Err(err))
	}

	snap := sched.Snapshot()
	log.Info("finished",
		logx.Int("frames", frames),
		logx.Uint64("fired", snap.Fired),
		logx.Uint64("fired_queued", snap.FiredQueued),
		logx.Uint64("rejected_full", snap.RejectedFull),
		logx.Uint64("discarded", snap.Discarded),
	)
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}
