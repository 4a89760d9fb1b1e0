package returner

import (
	"context"

	"fleetsched/pkg/logx"
)

// LogSink records outcomes as structured log lines. It is registered on
// every node and doubles as the last-resort fallback.
type LogSink struct {
	log logx.Logger
}

func NewLogSink(log logx.Logger) *LogSink { return &LogSink{log: log} }

func (s *LogSink) Name() string { return LogSinkName }

func (s *LogSink) Deliver(_ context.Context, o Outcome) error {
	fields := []logx.Field{
		logx.String("schedule", o.Schedule),
		logx.String("fun", o.Fun),
		logx.String("jid", o.JID),
		logx.Bool("success", o.Success),
		logx.Duration("took", o.Duration()),
		logx.Any("return", o.Return),
	}
	if o.Success {
		s.log.Info("job result", fields...)
	} else {
		fields = append(fields, logx.String("error", o.Error))
		s.log.Error("job result", fields...)
	}
	return nil
}
