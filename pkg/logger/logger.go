package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	Service      string `split_words:"true" default:"storefront"`
}

var DefaultConfig = &Config{
	Debug:        false,
	PrettyFormat: false,
	Service:      "storefront",
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

// New builds a logger writing to w. Pretty output is only applied by Init.
func New(w io.Writer, opts ...Config) zerolog.Logger {
	conf := safe(opts...)

	ctx := zerolog.New(w).With().Timestamp()
	if conf.Service != "" {
		ctx = ctx.Str("service", conf.Service)
	}
	logger := ctx.Logger()

	if conf.Debug {
		return logger.Level(zerolog.DebugLevel)
	}
	return logger.Level(zerolog.InfoLevel)
}

// Init replaces the global logger.
func Init(opts ...Config) {
	conf := safe(opts...)

	var w io.Writer = os.Stdout
	if conf.PrettyFormat {
		w = zerolog.NewConsoleWriter()
	}
	log.Logger = New(w, *conf).With().Caller().Stack().Logger()
}
