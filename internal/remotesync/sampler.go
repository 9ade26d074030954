package remotesync

import (
	"context"
	"time"
)

// sample emits the most recent value received from in at every tick of
// interval, skipping ticks where nothing new arrived. The output closes when
// in closes or ctx is done; a value pending at that point is dropped.
func sample[T any](ctx context.Context, in <-chan T, interval time.Duration) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var latest T
		pending := false
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				latest, pending = v, true
			case <-ticker.C:
				if !pending {
					continue
				}
				pending = false
				select {
				case out <- latest:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
