package logger

import (
	"io"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"

	"github.com/rflorenc/mesh-workbench/internal/insight"
)

// NewConsoleLogger returns a human-friendly Logger writing to stderr.
// Pretty print adds timestamp, log level and colorized output to the logs.
// Verbosity enables V(n) messages up to n.
func NewConsoleLogger(pretty bool, verbosity int) logr.Logger {
	return newLogger(color.Error, pretty, verbosity)
}

func newLogger(out io.Writer, pretty bool, verbosity int) logr.Logger {
	output := zerolog.ConsoleWriter{Out: out, NoColor: !pretty}
	if !pretty {
		output.PartsExclude = []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
		}
	}
	if verbosity < 0 {
		verbosity = 0
	}

	// zerologr maps V(n) to zerolog level 1-n.
	zlog := zerolog.New(output).Level(zerolog.Level(1 - verbosity)).With().Timestamp().Logger()

	zerologr.VerbosityFieldName = ""
	return zerologr.New(&zlog)
}

var colorPerStatus = map[insight.Status]*color.Color{
	insight.Online:            color.New(color.FgHiGreen),
	insight.Offline:           color.New(color.FgHiRed),
	insight.PartiallyDegraded: color.New(color.FgYellow),
}

// ColorizeStatus renders a connection status label in its status colour.
func ColorizeStatus(status insight.Status) string {
	if c, ok := colorPerStatus[status]; ok {
		return c.Sprint(status.Label())
	}
	return status.Label()
}

func ColorizeSubject(subject string) string {
	return color.CyanString(subject)
}

func ColorizeWarning(subject string) string {
	return color.YellowString(subject)
}

func ColorizeError(err error) string {
	return color.New(color.FgHiRed).Sprint(err.Error())
}
