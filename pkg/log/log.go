package log

import (
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
)

// FormatEnv selects the output format. "json" writes one JSON object per
// line; anything else writes human readable console lines.
const FormatEnv = "KFUNC_LOG_FORMAT"

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerologr.NameFieldName = "logger"
	zerologr.NameSeparator = "/"
}

// New returns a zerolog logger writing to w. verbose enables debug level,
// which carries logr V(1) messages.
func New(w io.Writer, verbose bool) *zerolog.Logger {
	output := w
	if os.Getenv(FormatEnv) != "json" {
		output = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02T15:04:05.999Z07:00"}
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &logger
}

// NewLogr is New bridged into logr.
func NewLogr(w io.Writer, verbose bool) logr.Logger {
	return zerologr.New(New(w, verbose))
}
