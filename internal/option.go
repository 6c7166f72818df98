package internal

import (
	"io"
	"net"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	logOut   io.Writer
	listener net.Listener
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the JSON log stream. Defaults to stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}

// WithListener serves HTTP on an existing listener instead of binding the
// configured port.
func WithListener(l net.Listener) Option {
	return func(a *application) {
		a.listener = l
	}
}
