package audit

import "context"

// Worker drains audit events from a channel and persists them, so rejected
// operations never wait on the audit sink. Run it under the process
// errgroup; a full inbox drops to synchronous emission at the publisher.
type Worker struct {
	store Store
	inbox <-chan Event
}

func NewWorker(store Store, inbox <-chan Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

// Run consumes until the context is cancelled, then drains what is already
// buffered before returning.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case event := <-w.inbox:
					if err := w.store.Append(context.WithoutCancel(ctx), event); err != nil {
						return err
					}
				default:
					return ctx.Err()
				}
			}
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}
