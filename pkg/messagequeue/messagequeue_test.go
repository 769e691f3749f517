package messagequeue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_PublishConsume(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, q.Publish(ctx, "billing", []byte(`{"n":1}`)))

	got := make(chan string, 1)
	go func() {
		_ = q.Consume(ctx, "billing", func(body []byte) error {
			got <- string(body)
			return nil
		})
	}()

	select {
	case body := <-got:
		assert.Equal(t, `{"n":1}`, body)
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

func TestMemoryQueue_RequeuesRejected(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Publish(ctx, "billing", []byte("x")))

	attempts := 0
	done := make(chan struct{})
	go func() {
		_ = q.Consume(ctx, "billing", func([]byte) error {
			attempts++
			if attempts < 2 {
				return errors.New("transient")
			}
			close(done)
			return nil
		})
	}()

	select {
	case <-done:
		assert.Equal(t, 2, attempts)
	case <-ctx.Done():
		t.Fatal("message not redelivered")
	}
}

func TestMemoryQueue_Closed(t *testing.T) {
	q := NewMemoryQueue()
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Publish(context.Background(), "x", nil), ErrClosed)
}
