package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// New builds the process-wide logger. Every line goes to stdout and to the
// audit log file at path; the file is the only durable trail of a
// provisioning run, so it is opened in append mode and never truncated.
// The returned closer must be called before exit.
func New(path string, debug bool) (*logrus.Logger, func() error, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	log := logrus.New()
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		// Output is a MultiWriter, so logrus cannot detect the terminal
		// on its own.
		ForceColors: term.IsTerminal(int(os.Stdout.Fd())),
	})
	if debug {
		log.SetLevel(logrus.DebugLevel)
	}

	return log, file.Close, nil
}

// Discard returns a logger that swallows everything. Used by tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
