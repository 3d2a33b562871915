// Package utils
package utils

import (
	"io"
	"log"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

const DefaultLogFile = "chainflip-framework.log"

var (
	logger zerolog.Logger
	once   sync.Once

	logFile   = DefaultLogFile
	logLevel  = zerolog.DebugLevel
	logPretty bool
)

// ConfigureLogger sets the log destination and level. It only has an effect
// before the first call to GetLogger. An empty file logs to stderr.
func ConfigureLogger(file, level string, pretty bool) {
	logFile = file
	logPretty = pretty
	if l, err := zerolog.ParseLevel(level); err == nil && level != "" {
		logLevel = l
	}
}

func GetLogger() *zerolog.Logger {
	once.Do(func() {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

		var out io.Writer = os.Stderr
		if logFile != "" {
			file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				log.Fatal(err)
			}
			out = file
		}
		if logPretty {
			out = zerolog.ConsoleWriter{Out: out, NoColor: logFile != ""}
		}
		logger = zerolog.New(out).Level(logLevel).With().Timestamp().Str("app", "chainflip-framework").Logger()
	})
	return &logger
}
