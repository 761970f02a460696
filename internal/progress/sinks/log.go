// Package sinks holds the bundled progress.Sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/zolointo/next-fext-randomizer/internal/progress"
)

// LogSink emits structured logs for progress streams. It is the default
// sink for interactive runs.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the event using structured fields.
func (s *LogSink) Consume(_ context.Context, evt progress.Event) error {
	fields := []zap.Field{
		zap.String("run_id", evt.RunID),
		zap.String("stage", string(evt.Stage)),
	}
	if evt.AppID > 0 {
		fields = append(fields, zap.Int("appid", evt.AppID))
	}
	if evt.Stage == progress.StageAppDone {
		fields = append(fields, zap.Bool("trailer_found", evt.TrailerFound))
	}
	if evt.Path != "" {
		fields = append(fields, zap.String("path", evt.Path))
	}
	if evt.Dur > 0 {
		fields = append(fields, zap.Duration("dur", evt.Dur))
	}
	if evt.Note != "" {
		fields = append(fields, zap.String("note", evt.Note))
	}
	s.logger.Info("progress event", fields...)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
