package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingCloser struct {
	name string
	log  *[]string
	err  error
}

func (c *recordingCloser) Close() error {
	*c.log = append(*c.log, c.name)
	return c.err
}

func TestShutdownClosesInReverseOrder(t *testing.T) {
	sm := NewShutdownManager(0)

	var log []string
	sm.RegisterCloser(&recordingCloser{name: "catalog", log: &log})
	sm.RegisterCloser(&recordingCloser{name: "http", log: &log})

	err := sm.Shutdown(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"http", "catalog"}, log)
}

func TestShutdownRunsOnce(t *testing.T) {
	sm := NewShutdownManager(0)

	var log []string
	sm.RegisterCloser(&recordingCloser{name: "once", log: &log})

	assert.NoError(t, sm.Shutdown(context.Background()))
	assert.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, []string{"once"}, log)
}

func TestShutdownReportsFirstCloserError(t *testing.T) {
	sm := NewShutdownManager(0)

	var log []string
	first := errors.New("db busy")
	sm.RegisterCloser(&recordingCloser{name: "a", log: &log, err: first})
	sm.RegisterCloser(&recordingCloser{name: "b", log: &log, err: errors.New("later")})

	err := sm.Shutdown(context.Background())
	// Closers run LIFO, so b fails first and wins; a still gets closed.
	assert.ErrorContains(t, err, "later")
	assert.Equal(t, []string{"b", "a"}, log)
}

func TestShutdownChClosesOnShutdown(t *testing.T) {
	sm := NewShutdownManager(0)

	select {
	case <-sm.ShutdownCh():
		t.Fatal("shutdown channel closed before shutdown")
	default:
	}

	assert.NoError(t, sm.Shutdown(context.Background()))

	select {
	case <-sm.ShutdownCh():
	default:
		t.Fatal("shutdown channel still open after shutdown")
	}
}

func TestListenForSignalsReturnsOnContextCancel(t *testing.T) {
	sm := NewShutdownManager(0)

	var log []string
	sm.RegisterCloser(&recordingCloser{name: "resource", log: &log})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sm.ListenForSignals(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"resource"}, log)
}
