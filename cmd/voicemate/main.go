// Command voicemate runs the voice interaction subsystem standalone: it
// loads configuration, wires the recognition and synthesis providers, and
// serves the voice pipeline until interrupted.
//
// A real deployment embeds the subsystem next to a rules engine. Standalone,
// the binary drives a scripted demonstration board (the opening position
// with its twenty legal moves) so the pipeline can be exercised end to end
// against a live microphone or the browser bridge.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voicemate/voicemate/internal/app"
	"github.com/voicemate/voicemate/internal/config"
	"github.com/voicemate/voicemate/internal/observe"
	"github.com/voicemate/voicemate/internal/screens"
	"github.com/voicemate/voicemate/pkg/chess"
	chessmock "github.com/voicemate/voicemate/pkg/chess/mock"
)

// shutdownTimeout bounds graceful teardown after the run loop exits.
const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voicemate: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voicemate: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voicemate starting",
		"config", *configPath,
		"asr_engine", cfg.ASR.Engine,
		"asr_fallback", cfg.ASR.Fallback,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "voicemate",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	application, err := app.New(ctx, cfg, app.Providers{
		Surface: demoBoard(),
	}, app.WithLogger(logger))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("voicemate ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("shutting down")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// demoSurface is the opening position as a scripted board. Moves are logged
// but never advance the position; this exists to exercise the voice
// pipeline, not to play a game.
type demoSurface struct {
	*chessmock.Position
}

func (demoSurface) Apply(san string) error {
	slog.Info("move accepted", "san", san)
	return nil
}

func demoBoard() screens.Surface {
	board := chessmock.New(
		"a3", "a4", "b3", "b4", "c3", "c4", "d3", "d4",
		"e3", "e4", "f3", "f4", "g3", "g4", "h3", "h4",
		"Na3", "Nc3", "Nf3", "Nh3",
	)

	backRank := []chess.PieceType{
		chess.Rook, chess.Knight, chess.Bishop, chess.Queen,
		chess.King, chess.Bishop, chess.Knight, chess.Rook,
	}
	for i, file := 0, byte('a'); file <= 'h'; i, file = i+1, file+1 {
		board.Place(chess.MakeSquare(file, '1'), chess.Piece{Type: backRank[i], Color: chess.White})
		board.Place(chess.MakeSquare(file, '2'), chess.Piece{Type: chess.Pawn, Color: chess.White})
		board.Place(chess.MakeSquare(file, '7'), chess.Piece{Type: chess.Pawn, Color: chess.Black})
		board.Place(chess.MakeSquare(file, '8'), chess.Piece{Type: backRank[i], Color: chess.Black})
	}
	return demoSurface{Position: board}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
