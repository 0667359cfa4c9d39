package federation

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/request"
)

// LoggingExecutor logs every request passed to the executor it wraps.
type LoggingExecutor struct {
	next Executor
	log  logrus.FieldLogger
}

// NewLoggingExecutor wraps next. A nil logger uses the standard logger.
func NewLoggingExecutor(next Executor, log logrus.FieldLogger) *LoggingExecutor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LoggingExecutor{next: next, log: log}
}

// Unwrap returns the wrapped executor.
func (e *LoggingExecutor) Unwrap() Executor { return e.next }

// Execute implements Executor.
func (e *LoggingExecutor) Execute(ctx *graph.ExecutionContext, r request.Request) error {
	entry := e.log.WithFields(logrus.Fields{
		"request":  r.Kind(),
		"location": r.String(),
	})
	if p := ctx.Principal(); p != "" {
		entry = entry.WithField("principal", p)
	}
	entry.Debug("executing request")

	start := time.Now()
	err := e.next.Execute(ctx, r)
	entry = entry.WithField("elapsed", time.Since(start))
	switch {
	case err != nil:
		entry.WithError(err).Error("request rejected")
	case r.HasError():
		entry.WithError(r.Err()).Warn("request failed")
	default:
		entry.Debug("request completed")
	}
	return err
}
