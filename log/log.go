package log

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/xeptore/sermondl/config"
	"github.com/xeptore/sermondl/constant"
)

func FromConfig(conf config.Log) zerolog.Logger {
	level, err := zerolog.ParseLevel(conf.Level)
	if nil != err {
		panic("invalid logging level: " + conf.Level)
	}

	switch strings.ToLower(conf.Format) {
	case "json":
		return withCommonFields(zerolog.New(os.Stderr)).Level(level)
	case "pretty":
		return withCommonFields(zerolog.New(consoleWriter())).Level(level)
	default:
		panic("invalid logging format: " + conf.Format)
	}
}

func NewDefault() zerolog.Logger {
	return withCommonFields(zerolog.New(consoleWriter())).Level(zerolog.InfoLevel)
}

// Nop is used by tests and library callers that do not care about logs.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func consoleWriter() zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{ //nolint:exhaustruct
		Out:          os.Stderr,
		TimeFormat:   time.RFC3339,
		TimeLocation: time.UTC,
	}
}

func withCommonFields(l zerolog.Logger) zerolog.Logger {
	return l.
		Hook(&stackHook{}).
		With().
		Timestamp().
		Str("version", constant.Version).
		Str("compile_time", constant.CompileTime).
		Logger()
}
