package log

import "github.com/robfig/cron/v3"

type cronLogger struct{}

// CronLogger adapts this package to cron.Logger so scheduler events end up
// in the same stream as the rest of the daemon.
func CronLogger() cron.Logger {
	return cronLogger{}
}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	// cron reports every schedule/wake at info level; that is noise for us.
	Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	Error("cron: "+msg, err, keysAndValues...)
}
