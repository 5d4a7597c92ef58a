package dbwork

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSubmitReturnsValue(t *testing.T) {
	p := New(2, 4)
	defer p.Close()

	resCh := p.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		return 42, nil
	})

	select {
	case res := <-resCh:
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if res.Value.(int) != 42 {
			t.Fatalf("got %v, want 42", res.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}
}

func TestSubmitPropagatesError(t *testing.T) {
	p := New(1, 4)
	defer p.Close()

	wantErr := errors.New("boom")
	resCh := p.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})

	res := <-resCh
	if res.Err != wantErr {
		t.Fatalf("got %v, want %v", res.Err, wantErr)
	}
}

func TestSubmitRunsManyConcurrently(t *testing.T) {
	p := New(4, 32)
	defer p.Close()

	const n = 20
	chans := make([]<-chan Result, n)
	for i := 0; i < n; i++ {
		i := i
		chans[i] = p.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
			return i, nil
		})
	}
	for i, ch := range chans {
		res := <-ch
		if res.Value.(int) != i {
			t.Errorf("job %d returned %v", i, res.Value)
		}
	}
}
