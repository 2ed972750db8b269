package main

import (
	"context"
	"frogquest/assets"
	"frogquest/internal/cli"
	"frogquest/internal/config"
	"frogquest/internal/game"
	"frogquest/internal/host"
	"frogquest/internal/input"
	"frogquest/internal/render"
	"log/slog"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

const closeTimeout = 3 * time.Second

func main() {
	cfg, err := config.Load(config.DefaultEnvFile, os.Args)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := cli.NewSignalContext()
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("failed to run game", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	font, err := assets.Font(cfg.FontPath)
	if err != nil {
		return err
	}

	stream := input.NewStream()
	app, err := game.NewApp(ctx, game.Options{
		Font:     font,
		Pallet:   render.DefaultPallet,
		Stream:   stream,
		Rollback: cfg.Rollback,
		Open:     game.NetOpener(cfg.Net),
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := app.Close(ctx); err != nil {
			slog.Warn("failed to close game", "error", err)
		}
	}()

	surface, err := host.NewEbitenSurface(cfg.PixelScale)
	if err != nil {
		return err
	}

	ebiten.SetWindowTitle("Frog Quest Battle")
	ebiten.SetWindowSize(surface.ScreenSize())
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetTPS(60)

	return ebiten.RunGame(host.NewGame(ctx, app, host.NewDevices(stream), surface))
}
