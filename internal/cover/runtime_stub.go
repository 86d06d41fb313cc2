//go:build !govips || !cgo

package cover

import "go.uber.org/zap"

// Startup is a no-op for the pure Go backend.
func Startup(*zap.Logger) error {
	return nil
}

func Shutdown() {}

func newTransformer() Transformer {
	return stdlibTransformer{}
}
