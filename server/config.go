package server

import "time"

type Config struct {
	Addr              string        `envconfig:"ADDR" default:":8080"`
	ReadHeaderTimeout time.Duration `split_words:"true" default:"5s"`
	// WriteTimeout bounds a whole request, including the turn it runs.
	WriteTimeout    time.Duration `split_words:"true" default:"90s"`
	IdleTimeout     time.Duration `split_words:"true" default:"120s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
	MaxBodyBytes    int64         `split_words:"true" default:"65536"`
}
