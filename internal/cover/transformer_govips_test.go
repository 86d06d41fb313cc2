//go:build govips && cgo

package cover

import (
	"os"
	"testing"

	"github.com/davidbyttow/govips/v2/vips"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	if err := Startup(zap.NewNop()); err != nil {
		panic(err)
	}
	code := m.Run()
	Shutdown()
	os.Exit(code)
}

func TestGovipsTransformer_WritesProgressiveJPEG(t *testing.T) {
	n := NewDefaultNormalizer(DefaultOptions())
	if n.Backend() != "govips" || !n.Progressive() {
		t.Fatalf("expected govips progressive backend, got %s progressive=%v", n.Backend(), n.Progressive())
	}

	res, err := n.Normalize(encodeJPEG(t, bands(300, 200, red, green, blue)))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if sof := jpegSOF(t, res.Data); sof != 0xC2 {
		t.Fatalf("expected progressive SOF2, got marker %#x", sof)
	}
}

func TestVipsLogHandler_MapsLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	handle := vipsLogHandler(zap.New(core))

	handle("VIPS", vips.LogLevelWarning, "cache full")
	handle("VIPS", vips.LogLevelCritical, "out of memory")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel || entries[0].Message != "cache full" {
		t.Fatalf("unexpected first entry %+v", entries[0].Entry)
	}
	if entries[1].Level != zapcore.ErrorLevel || entries[1].ContextMap()["domain"] != "VIPS" {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
}
