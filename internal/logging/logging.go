// Package logging points the standard logger at stderr or a rotated file.
package logging

import (
	"io"
	"log"
	"os"

	"x-wireless/internal/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures the standard logger and returns the writer it uses.
// The caller closes the writer on shutdown.
func Setup(cfg config.LogConfig, debug bool) io.WriteCloser {
	flags := log.LstdFlags
	if debug {
		flags |= log.Lshortfile
	}
	log.SetFlags(flags)

	w := Writer(cfg)
	log.SetOutput(w)
	return w
}

// Writer returns the log destination for cfg
func Writer(cfg config.LogConfig) io.WriteCloser {
	if cfg.File == "" {
		return nopCloser{os.Stderr}
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
