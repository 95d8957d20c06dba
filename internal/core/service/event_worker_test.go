package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/rl1809/shop-cart/internal/core/domain"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderPlaced
	failOn int64
}

func (p *recordingPublisher) PublishOrderPlaced(ctx context.Context, event domain.OrderPlaced) error {
	if event.OrderID == p.failOn {
		return errors.New("stream unavailable")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func TestRunEventWorker_DrainsUntilClosed(t *testing.T) {
	queue := make(chan domain.OrderPlaced, 10)
	pub := &recordingPublisher{failOn: 2}

	for id := int64(1); id <= 4; id++ {
		queue <- domain.OrderPlaced{OrderID: id}
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			RunEventWorker(id, queue, pub, zerolog.Nop())
		}(i)
	}
	wg.Wait()

	assert.Len(t, pub.events, 3, "failed event is dropped, the rest are published")
}

func TestRunEventWorker_FromOrderService(t *testing.T) {
	env := newTestEnv()
	env.signup("jack")
	_, err := env.carts.AddToCart(context.Background(), "jack", 1, 1)
	assert.NoError(t, err)

	_, err = env.orders.Submit(context.Background(), "jack")
	assert.NoError(t, err)
	env.orders.Close()

	pub := &recordingPublisher{}
	RunEventWorker(0, env.orders.GetEventQueue(), pub, zerolog.Nop())

	if assert.Len(t, pub.events, 1) {
		assert.Equal(t, "jack", pub.events[0].Username)
		assert.Equal(t, "2.99", pub.events[0].Total.String())
	}
}
