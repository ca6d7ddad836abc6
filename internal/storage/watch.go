package storage

import (
	"context"
	"log/slog"

	"spendbook/internal/core"
)

// WatchAll returns a live view over the full expense set. The current
// snapshot is emitted immediately and a fresh one after every insert or
// delete, until ctx is done. Rapid bursts of writes may coalesce into a
// single emission, but the view always converges on the final state.
func (s *Store) WatchAll(ctx context.Context) (<-chan []core.Expense, error) {
	return s.watch(ctx, func(ctx context.Context) ([]core.Expense, error) {
		return s.All(ctx)
	})
}

// WatchBetween returns a live view over the records dated within [from, to],
// with the same emission contract as WatchAll.
func (s *Store) WatchBetween(ctx context.Context, from, to int64) (<-chan []core.Expense, error) {
	return s.watch(ctx, func(ctx context.Context) ([]core.Expense, error) {
		return s.Between(ctx, from, to)
	})
}

func (s *Store) watch(ctx context.Context, query func(context.Context) ([]core.Expense, error)) (<-chan []core.Expense, error) {
	first, err := query(ctx)
	if err != nil {
		return nil, err
	}

	signal := make(chan struct{}, 1)
	id := s.addWatcher(signal)

	out := make(chan []core.Expense, 1)
	out <- first

	go func() {
		defer s.removeWatcher(id)
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
				snapshot, err := query(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					slog.Error("Live view requery failed", "error", err)
					continue
				}
				select {
				case out <- snapshot:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *Store) addWatcher(signal chan struct{}) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = signal
	return id
}

func (s *Store) removeWatcher(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers, id)
}

// notify wakes every live view after a mutation. The per-watcher signal
// channel is buffered with capacity 1, so a watcher that is already pending
// a requery absorbs further notifications without blocking the writer.
func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, signal := range s.watchers {
		select {
		case signal <- struct{}{}:
		default:
		}
	}
}
