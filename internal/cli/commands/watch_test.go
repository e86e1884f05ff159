package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatchLoop(t *testing.T) {
	t.Parallel()

	t.Run("delivers batches until the watcher closes", func(t *testing.T) {
		t.Parallel()
		changes := make(chan []string, 2)
		errs := make(chan error, 1)
		changes <- []string{"instructions/base.md"}
		errs <- errors.New("overflow")

		var batches [][]string
		done := make(chan struct{})
		go func() {
			defer close(done)
			watchLoop(context.Background(), changes, errs, func(paths []string) {
				batches = append(batches, paths)
				close(changes)
			})
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("loop did not stop after the channels closed")
		}
		assert.Equal(t, [][]string{{"instructions/base.md"}}, batches)
	})

	t.Run("closed error channel stops the loop", func(t *testing.T) {
		t.Parallel()
		errs := make(chan error)
		close(errs)

		calls := 0
		watchLoop(context.Background(), make(chan []string), errs, func([]string) { calls++ })
		assert.Zero(t, calls)
	})

	t.Run("cancelled context stops the loop", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		watchLoop(ctx, make(chan []string), make(chan error), func([]string) {})
	})
}
