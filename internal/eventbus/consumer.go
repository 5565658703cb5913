package eventbus

import "context"

// Consumer handles events of the types it is subscribed to. Each consumer
// gets GetWorkerCount goroutines reading from its event channel.
type Consumer interface {
	Consume(ctx context.Context, event Event) error
	GetWorkerCount() int
}

// ConsumerFunc adapts a function to a single-worker Consumer.
type ConsumerFunc func(ctx context.Context, event Event) error

func (f ConsumerFunc) Consume(ctx context.Context, event Event) error {
	return f(ctx, event)
}

func (f ConsumerFunc) GetWorkerCount() int {
	return 1
}
