package logger

import (
	"io"
	"os"

	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

var Log = slog.New(slog.NewJSONHandler(os.Stdout, nil))

func Init(logFilePath string) {
	rotator := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    10, // MB
		MaxBackups: 0,  // only one file
		MaxAge:     0,  // ignore age
		Compress:   false,
	}
	writer := io.MultiWriter(os.Stdout, rotator)
	Log = slog.New(slog.NewJSONHandler(writer, nil))
	slog.SetDefault(Log)
}

// InitFileOnly keeps stdout free for interactive output (progress bars).
func InitFileOnly(logFilePath string) {
	rotator := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    10,
		MaxBackups: 0,
		MaxAge:     0,
		Compress:   false,
	}
	Log = slog.New(slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(Log)
}

// InitDiscard silences logging, used by tests.
func InitDiscard() {
	Log = slog.New(slog.NewJSONHandler(io.Discard, nil))
}
