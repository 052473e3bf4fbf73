package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

type Config struct {
	Level string
	JSON  bool
}

func New(name string, cfg Config) hclog.Logger {
	return NewWithOutput(name, cfg, os.Stdout)
}

func NewWithOutput(name string, cfg Config, out io.Writer) hclog.Logger {
	level := hclog.LevelFromString(cfg.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		Output:     out,
		JSONFormat: cfg.JSON,
	})
}

// AsynqLogger adapts an hclog.Logger to asynq's variadic logger interface.
type AsynqLogger struct {
	Logger hclog.Logger
}

func (l AsynqLogger) Debug(args ...interface{}) { l.Logger.Debug(fmt.Sprint(args...)) }
func (l AsynqLogger) Info(args ...interface{})  { l.Logger.Info(fmt.Sprint(args...)) }
func (l AsynqLogger) Warn(args ...interface{})  { l.Logger.Warn(fmt.Sprint(args...)) }
func (l AsynqLogger) Error(args ...interface{}) { l.Logger.Error(fmt.Sprint(args...)) }

func (l AsynqLogger) Fatal(args ...interface{}) {
	l.Logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
