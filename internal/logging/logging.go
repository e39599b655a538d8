package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"spadetable/internal/config"
)

// Init configures the global zerolog logger. When cfg.File is set, log
// output is mirrored to a size-capped file so long-running watchers do not
// fill the disk.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && cfg.Level != "" {
		level = parsed
	}

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	if cfg.File != "" {
		if fw, err := newCappedFileWriter(cfg.File, cfg.MaxMB); err == nil {
			output = io.MultiWriter(output, fw)
		}
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(output).With().Timestamp().Logger()

	mu.Lock()
	current = output
	mu.Unlock()
}

var (
	mu      sync.Mutex
	current io.Writer = os.Stdout
)

// Writer returns the destination Init configured, for handing to loggers
// outside the zerolog global (request logging middleware and the like).
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return current
}
