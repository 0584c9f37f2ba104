package logger

import "go.uber.org/zap"

// DiagnosticSink writes the monitor's free-text diagnostic lines to zap.
type DiagnosticSink struct {
	l *zap.SugaredLogger
}

// NewDiagnosticSink returns a sink logging through l, or the global logger
// when l is nil.
func NewDiagnosticSink(l *zap.SugaredLogger) *DiagnosticSink {
	if l == nil {
		l = global
	}
	return &DiagnosticSink{l: l.Named("panel")}
}

// WriteLine logs one diagnostic line at info level.
func (d *DiagnosticSink) WriteLine(line string) {
	d.l.Info(line)
}
