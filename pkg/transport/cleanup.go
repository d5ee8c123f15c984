package transport

import (
	"errors"
	"fmt"
	"io"

	"github.com/dd0wney/cluso-graphwriter/pkg/logging"
)

// Closers releases sockets and other resources in reverse registration
// order. It is meant for setup paths:
//
//	closers := transport.NewClosers(logger)
//	defer closers.Release()
//
//	sock, err := factory.NewPushSocket()
//	if err != nil {
//	    return err
//	}
//	closers.Add("push socket", sock)
//	if err := sock.Dial(addr); err != nil {
//	    return err // sock is closed by Release
//	}
//
//	closers.Keep()
type Closers struct {
	logger  logging.Logger
	entries []namedCloser
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// NewClosers creates an empty set. A nil logger discards warnings.
func NewClosers(logger logging.Logger) *Closers {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Closers{logger: logger}
}

// Add registers a resource
func (c *Closers) Add(name string, closer io.Closer) {
	if closer == nil {
		return
	}
	c.entries = append(c.entries, namedCloser{name: name, closer: closer})
}

// Release closes everything still registered, logging failures. Calling it
// again is a no-op.
func (c *Closers) Release() {
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := c.entries[i]
		if err := e.closer.Close(); err != nil {
			c.logger.Warn("failed to close resource during cleanup",
				logging.String("resource", e.name),
				logging.Error(err))
		}
	}
	c.entries = c.entries[:0]
}

// Keep forgets all registered resources without closing them.
func (c *Closers) Keep() {
	c.entries = c.entries[:0]
}

// CloseAll closes everything still registered and returns the joined errors.
func (c *Closers) CloseAll() error {
	var errs []error
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := c.entries[i]
		if err := e.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", e.name, err))
		}
	}
	c.entries = c.entries[:0]
	return errors.Join(errs...)
}

// Len returns the number of registered resources
func (c *Closers) Len() int {
	return len(c.entries)
}
