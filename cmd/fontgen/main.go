// Command fontgen writes the built-in font as a serialized sprite sheet that
// the game can load with -font.
package main

import (
	"flag"
	"frogquest/assets"
	_ "frogquest/internal/config"
	"log/slog"
	"os"
)

func main() {
	var out string
	flag.StringVar(&out, "o", "font.bin", "output file")
	flag.Parse()

	sheet, err := assets.Font("")
	if err != nil {
		slog.Error("failed to build font", "error", err)
		os.Exit(1)
	}

	data, err := sheet.MarshalBinary()
	if err != nil {
		slog.Error("failed to encode font", "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(out, data, 0o644); err != nil {
		slog.Error("failed to write font", "error", err)
		os.Exit(1)
	}
	slog.Info("wrote font", "path", out, "glyphs", sheet.Len(), "bytes", len(data))
}
