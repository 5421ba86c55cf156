package consumers

import (
	"context"

	"soilsense/internal/adapters/kafka"
)

// MessageSource delivers messages from one topic. *kafka.Consumer implements it.
type MessageSource interface {
	Consume(ctx context.Context, handler kafka.MessageHandler) error
	Close() error
}

// run consumes until ctx is canceled and closes the source on exit
func run(ctx context.Context, source MessageSource, handler kafka.MessageHandler, closeLog func(err error)) error {
	defer func() {
		closeLog(source.Close())
	}()

	err := source.Consume(ctx, handler)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
