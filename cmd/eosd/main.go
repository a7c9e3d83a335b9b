// Command eosd runs the EOS actor daemon: the tick scheduler, the
// control RPC, the 9P2000.L actor overlay, and the supporting telemetry
// and key/value services, wired together from layered configuration
// (spec sections 5, 6).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eos/internal/config"
	"eos/internal/kvstore"
	"eos/internal/ninep"
	"eos/internal/rpc"
	"eos/internal/scheduler"
	"eos/internal/telemetry"
	"eos/internal/vfs"
)

func main() {
	cfg := config.Load(os.Args[1:])

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	kv, err := kvstore.Open(cfg.KVDriver, cfg.KVPath)
	if err != nil {
		logger.Error("failed to open kv store", slog.Any("error", err))
		os.Exit(1)
	}
	// kv is closed by sys.Shutdown below; System owns its lifecycle.

	tel, err := telemetry.New(cfg.TelemetryAddr, logger)
	if err != nil {
		logger.Error("failed to start telemetry emitter", slog.Any("error", err))
		os.Exit(1)
	}
	defer tel.Close()

	sys := scheduler.New(kv, tel, logger, cfg.TickMs)

	rpcServer := rpc.New(sys, logger, cfg.RPCAddr)
	ninepServer := ninep.New(vfs.New(sys), cfg.SocketPath, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()

		sig = <-sigCh
		logger.Warn("received second signal, forcing exit", slog.String("signal", sig.String()))
		os.Exit(1)
	}()

	go sys.Run()

	go func() {
		logger.Info("rpc listening", slog.String("addr", cfg.RPCAddr))
		if err := rpcServer.ListenAndServe(); err != nil {
			logger.Error("rpc server error", slog.Any("error", err))
		}
	}()

	go func() {
		logger.Info("9p overlay listening", slog.String("socket", cfg.SocketPath))
		if err := ninepServer.ListenAndServe(); err != nil {
			logger.Error("9p server error", slog.Any("error", err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc shutdown error", slog.Any("error", err))
	}
	if err := ninepServer.Close(); err != nil {
		logger.Warn("9p shutdown error", slog.Any("error", err))
	}
	sys.Shutdown()
	logger.Info("eosd stopped")
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
