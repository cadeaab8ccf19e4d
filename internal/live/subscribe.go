package live

// Result is one emission of a live query. The first emission is always
// the loading sentinel, distinct from an empty result; the first real
// value follows as soon as the query has read its tables once.
type Result[T any] struct {
	Loading bool
	Value   T
	Err     error
}

// QueryFunc evaluates a query against the local store and reports the
// tables its evaluation touched. Joined queries report every table
// they read, so a change to either side recomputes the whole result.
type QueryFunc[T any] func() (T, []string, error)

// Subscription delivers query results on C until Close is called.
type Subscription[T any] struct {
	C <-chan Result[T]

	broker *Broker
	signal chan struct{}
	done   chan struct{}
}

// Close tears the subscription down and closes C.
func (s *Subscription[T]) Close() {
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)
	s.broker.unsubscribe(s.signal)
}

// Subscribe evaluates query once, emits a loading sentinel followed by
// the first result, then re-emits whenever any table the latest
// evaluation touched changes. The watched table set follows the query:
// each evaluation re-registers exactly the tables it read.
func Subscribe[T any](b *Broker, query QueryFunc[T]) *Subscription[T] {
	out := make(chan Result[T], 1)
	sub := &Subscription[T]{
		C:      out,
		broker: b,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(out)
		defer b.unsubscribe(sub.signal)

		push(out, sub.done, Result[T]{Loading: true})

		for {
			value, tables, err := query()
			b.unsubscribe(sub.signal)
			b.subscribe(tables, sub.signal)
			push(out, sub.done, Result[T]{Value: value, Err: err})

			select {
			case <-sub.done:
				return
			case <-sub.signal:
			}
		}
	}()

	return sub
}

// push delivers the latest result, displacing an unread stale one so a
// slow consumer always sees the freshest state.
func push[T any](out chan Result[T], done chan struct{}, res Result[T]) {
	for {
		select {
		case <-done:
			return
		case out <- res:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}
