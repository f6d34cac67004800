package ulogger

import (
	"io"
	"os"
)

type Options struct {
	logLevel   string
	loggerType string
	writer     io.Writer
	pretty     *bool
}

type Option func(*Options)

func DefaultOptions() *Options {
	return &Options{
		logLevel:   "INFO",
		loggerType: "zerolog",
		writer:     os.Stdout,
	}
}

func WithLevel(level string) Option {
	return func(o *Options) {
		if level != "" {
			o.logLevel = level
		}
	}
}

func WithLoggerType(loggerType string) Option {
	return func(o *Options) {
		if loggerType != "" {
			o.loggerType = loggerType
		}
	}
}

func WithWriter(w io.Writer) Option {
	return func(o *Options) {
		if w != nil {
			o.writer = w
		}
	}
}

// WithPretty overrides the PRETTY_LOGS setting.
func WithPretty(pretty bool) Option {
	return func(o *Options) {
		o.pretty = &pretty
	}
}
