// Package logging sets up the console logger shared by every command
package logging

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// TimeFormat is used for the timestamp column of console output
const TimeFormat = "15:04:05"

// NewConsoleWriter returns a human readable writer for out, colored only on a terminal
func NewConsoleWriter(out io.Writer) zerolog.ConsoleWriter {
	writer := zerolog.ConsoleWriter{Out: out}
	writer.TimeFormat = TimeFormat
	writer.NoColor = !isTerminal(out)
	writer.PartsOrder = []string{
		zerolog.TimestampFieldName,
		zerolog.LevelFieldName,
		zerolog.MessageFieldName,
	}

	return writer
}

// New creates a logger writing to out at level
func New(out io.Writer, level zerolog.Level) zerolog.Logger {
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		return eris.ToString(err, true)
	}

	return zerolog.New(NewConsoleWriter(out)).Level(level).With().Timestamp().Logger()
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
