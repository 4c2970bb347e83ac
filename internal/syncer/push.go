package syncer

import (
	"context"
	"log"
)

// pushAsync runs a remote push in its own goroutine and reports the outcome
// on the returned buffered channel.
//
// The push is detached from the caller's cancellation: fire-and-forget pushes
// are never explicitly cancelled, their result is only observed. Failures are
// logged and delivered on the channel as *RemoteWriteError; the channel is
// buffered so a caller that never reads it leaks nothing.
func pushAsync(ctx context.Context, logger *log.Logger, entity, id string, push func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(done)

		if err := push(ctx); err != nil {
			werr := &RemoteWriteError{Entity: entity, ID: id, Err: err}
			logger.Printf("%v (record stays pending)", werr)
			done <- werr
			return
		}
		done <- nil
	}()

	return done
}
