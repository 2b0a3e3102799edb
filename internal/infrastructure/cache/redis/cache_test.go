package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

func unreachableClient() *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestUnreachableServerIsAMiss(t *testing.T) {
	t.Parallel()

	c := NewWithClient(unreachableClient(), "", nil)
	defer c.Close()

	if _, ok := c.Get(context.Background(), "link:a"); ok {
		t.Fatal("expected miss when redis is unreachable")
	}
	if err := c.Set(context.Background(), "link:a", []byte("x"), time.Minute); err == nil {
		t.Fatal("expected set error when redis is unreachable")
	}
}

func TestNewFailsWithoutServer(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := New(ctx, Options{Address: "127.0.0.1:1"}, nil); err == nil {
		t.Fatal("expected ping failure")
	}
}
