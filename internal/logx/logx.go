// Package logx configures the process-wide zerolog logger.
package logx

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets up the global logger. Development gets a console writer with
// caller info at debug level; everything else logs structured JSON at info.
func Init(environment string) {
	if environment == "production" {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
		return
	}

	log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Caller().Logger()
	log.Logger = log.Logger.Level(zerolog.DebugLevel)
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
