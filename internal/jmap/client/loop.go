package client

import (
	"context"
	"sync"
	"time"
)

// backgroundLoop runs tick on a fixed interval until stopped. Stop does not
// wait for a running tick; ticks observe cancellation through their context.
type backgroundLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func startLoop(interval time.Duration, tick func(ctx context.Context)) *backgroundLoop {
	ctx, cancel := context.WithCancel(context.Background())
	l := &backgroundLoop{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(l.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick(ctx)
			}
		}
	}()
	return l
}

// Stop cancels the loop. It is safe to call more than once.
func (l *backgroundLoop) Stop() {
	if l == nil {
		return
	}
	l.once.Do(l.cancel)
}

// Done is closed once the loop goroutine has exited.
func (l *backgroundLoop) Done() <-chan struct{} {
	return l.done
}
