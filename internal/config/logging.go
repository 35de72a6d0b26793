package config

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogOutput sends the standard logger to console and, when path is
// set, to a size-rotated file as well. A nil console with no path silences
// logging. The returned closer flushes the file.
func SetupLogOutput(path string, console io.Writer) (io.Closer, error) {
	if path == "" {
		if console == nil {
			console = io.Discard
		}
		log.SetOutput(console)
		return io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    32, // MB
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}
	if console == nil {
		log.SetOutput(w)
	} else {
		log.SetOutput(io.MultiWriter(console, w))
	}
	return w, nil
}
