package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speedwagon-io/envstream/internal/config"
	"github.com/speedwagon-io/envstream/internal/diag"
	"github.com/speedwagon-io/envstream/internal/httpd"
	"github.com/speedwagon-io/envstream/internal/lib/logger/sl"
	"github.com/speedwagon-io/envstream/internal/metrics"
	"github.com/speedwagon-io/envstream/internal/sampler"
	"github.com/speedwagon-io/envstream/internal/sensor"
	"github.com/speedwagon-io/envstream/internal/stream"
	"github.com/speedwagon-io/envstream/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	base := sl.NewHandler(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// The sink reports its own overflow through the base handler only.
	sink := diag.NewSink(slog.New(base), cfg.Diagnostics.Capacity, m)
	log := slog.New(diag.NewHandler(base, sink, sl.ParseLevel(cfg.Diagnostics.Level)))
	slog.SetDefault(log)

	log.Info("starting envstream",
		slog.String("env", cfg.Env),
		slog.String("device_id", cfg.Device.ID),
	)

	deviceCfg := config.MustLoadDevice(cfg.Device.ConfigPath)

	log.Info("loaded device config",
		slog.String("location", deviceCfg.Location),
		slog.Int("sensors", len(deviceCfg.Sensors)),
	)

	sensors, err := sensor.Build(log, deviceCfg)
	if err != nil {
		log.Error("failed to build sensors", sl.Err(err))
		os.Exit(1)
	}
	defer closeSensors(log, sensors)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	err = sensor.InitAll(initCtx, sensors)
	initCancel()
	if err != nil {
		log.Error("failed to init sensors", sl.Err(err))
		os.Exit(1)
	}

	channel := telemetry.NewChannel(cfg.Stream.ChannelCapacity)

	smp, err := sampler.New(log, sensors, channel, sampler.Options{
		Interval:          cfg.Sampler.Interval,
		ReferenceType:     cfg.Sampler.ReferenceType,
		LowLightThreshold: cfg.Sampler.LowLightThreshold,
	}, m)
	if err != nil {
		log.Error("failed to create sampler", sl.Err(err))
		os.Exit(1)
	}

	acceptor := stream.NewWebSocketAcceptor(log, cfg.Stream.MaxConnections, cfg.Stream.MaxFrameSize)
	streamServer := stream.NewServer(log, acceptor, channel, sink, m, cfg.Stream.MaxFrameSize)

	httpServer := httpd.NewServer(log, cfg.HTTP, channel, acceptor, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpServer.AddChecker(httpd.NewSamplerHealthChecker(smp))
	httpServer.AddChecker(httpd.NewStreamHealthChecker(acceptor))

	if err := httpServer.Start(); err != nil {
		log.Error("failed to start http server", sl.Err(err))
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			log.Info("received signal, shutting down", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	var (
		wg        sync.WaitGroup
		sampleErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := streamServer.Run(ctx); err != nil {
			log.Error("stream server failed", sl.Err(err))
		}
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		sampleErr = smp.Run(ctx)
	}()

	<-ctx.Done()

	acceptor.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop http server", sl.Err(err))
	}

	wg.Wait()

	if sampleErr != nil {
		log.Error("sampling failed", sl.Err(sampleErr))
		closeSensors(log, sensors)
		os.Exit(1)
	}

	log.Info("envstream stopped")
}

func closeSensors(log *slog.Logger, sensors []sensor.Sensor) {
	for _, s := range sensors {
		c, ok := s.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			log.Warn("failed to close sensor", slog.String("sensor", s.Name()), sl.Err(err))
		}
	}
}
