package logger

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger writes JSON log lines through zap.
type ZapLogger struct {
	sugar   *zap.SugaredLogger
	closers []io.Closer
}

// NewZapLogger builds a JSON logger writing to every writer in ws.
// Writers implementing io.Closer are closed by Close.
func NewZapLogger(ws ...io.Writer) *ZapLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	syncers := make([]zapcore.WriteSyncer, 0, len(ws))
	var closers []io.Closer
	for _, w := range ws {
		syncers = append(syncers, zapcore.AddSync(w))
		if c, ok := w.(io.Closer); ok {
			closers = append(closers, c)
		}
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.NewMultiWriteSyncer(syncers...),
		zapcore.InfoLevel,
	)
	return &ZapLogger{
		sugar:   zap.New(core).Sugar(),
		closers: closers,
	}
}

func (z *ZapLogger) Info(format string, args ...interface{}) {
	z.sugar.Infof(format, args...)
}

func (z *ZapLogger) Warning(format string, args ...interface{}) {
	z.sugar.Warnf(format, args...)
}

func (z *ZapLogger) Error(format string, args ...interface{}) {
	z.sugar.Errorf(format, args...)
}

// Close flushes zap and closes owned writers. Sync errors on terminals
// (EINVAL on stdout) are ignored.
func (z *ZapLogger) Close() error {
	_ = z.sugar.Sync()
	var firstErr error
	for _, c := range z.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	z.closers = nil
	return firstErr
}

var _ Logger = (*ZapLogger)(nil)
