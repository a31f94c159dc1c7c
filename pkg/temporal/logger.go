package temporal

import (
	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// ZapAdapter is a Temporal logger adapter for Zap.
type ZapAdapter struct{ *zap.SugaredLogger }

var (
	_ log.Logger     = (*ZapAdapter)(nil)
	_ log.WithLogger = (*ZapAdapter)(nil)
)

// NewZapAdapter creates a new Temporal logger adapter from a Zap logger.
// The SDK emits key/value pairs, so the adapter is sugared.
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	return &ZapAdapter{logger.Named("temporal").Sugar()}
}

func (z *ZapAdapter) Debug(msg string, keyvals ...interface{}) { z.Debugw(msg, keyvals...) }
func (z *ZapAdapter) Info(msg string, keyvals ...interface{})  { z.Infow(msg, keyvals...) }
func (z *ZapAdapter) Warn(msg string, keyvals ...interface{})  { z.Warnw(msg, keyvals...) }
func (z *ZapAdapter) Error(msg string, keyvals ...interface{}) { z.Errorw(msg, keyvals...) }

// With returns an adapter carrying keyvals on every entry.
func (z *ZapAdapter) With(keyvals ...interface{}) log.Logger {
	return &ZapAdapter{z.SugaredLogger.With(keyvals...)}
}
