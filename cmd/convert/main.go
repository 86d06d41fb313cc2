// Command convert runs the audio or image normalizer on a local file and
// prints the resulting metadata as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dunamismax/trackprep/internal/audio"
	"github.com/dunamismax/trackprep/internal/config"
	"github.com/dunamismax/trackprep/internal/cover"
	"github.com/dunamismax/trackprep/internal/logging"
)

func main() {
	kind := flag.String("kind", "", "media kind: audio or image")
	in := flag.String("in", "", "input file")
	out := flag.String("out", "", "output file")
	configPath := flag.String("config", "", "path to YAML config (defaults to $TRACKPREP_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if *in == "" || *out == "" {
		logger.Fatal("both -in and -out are required")
	}

	meta, err := run(cfg, logger, *kind, *in, *out)
	if err != nil {
		logger.Fatal("conversion failed", zap.String("kind", *kind), zap.String("in", *in), zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		logger.Fatal("write metadata", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger, kind, inPath, outPath string) (any, error) {
	input, err := os.ReadFile(inPath)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	var (
		data []byte
		meta any
	)
	switch kind {
	case "audio":
		if int64(len(input)) > cfg.Limits.MaxAudioBytes {
			return nil, fmt.Errorf("input exceeds %d bytes", cfg.Limits.MaxAudioBytes)
		}
		n, err := audio.NewDefaultNormalizer(cfg.Audio.Resampler)
		if err != nil {
			return nil, err
		}
		res, err := n.Normalize(input)
		if err != nil {
			return nil, err
		}
		data, meta = res.Data, res.Metadata
	case "image":
		if int64(len(input)) > cfg.Limits.MaxImageBytes {
			return nil, fmt.Errorf("input exceeds %d bytes", cfg.Limits.MaxImageBytes)
		}
		if err := cover.Startup(logger); err != nil {
			return nil, err
		}
		defer cover.Shutdown()

		n := cover.NewDefaultNormalizer(cover.Options{
			CenterCrop:     cfg.Image.CenterCrop,
			ExifCorrection: cfg.Image.ExifCorrection,
		})
		res, err := n.Normalize(input)
		if err != nil {
			return nil, err
		}
		data, meta = res.Data, res.Metadata
	default:
		return nil, fmt.Errorf("unknown kind %q (want audio or image)", kind)
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	return meta, nil
}
