package kafka

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestProducerCloseAfterCancel(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "orders-test", 4, zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	// cancellation and Close race for the inbox; neither may panic
	cancel()
	p.Close()
	p.WaitClosed()
}

func TestProducerCancelAfterClose(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "orders-test", 4, zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	p.Close()
	cancel()
	p.WaitClosed()
}
