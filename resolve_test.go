package reqwire

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDependencies(t *testing.T) {
	t.Parallel()

	t.Run("chain resolves in dependency order", func(t *testing.T) {
		t.Parallel()

		registry := NewRegistry()
		require.NoError(t, registry.Provide("db", func(ctx context.Context, args Args) (any, error) {
			return "db-conn", nil
		}))
		require.NoError(t, registry.Provide("repo", func(ctx context.Context, args Args) (any, error) {
			return "repo(" + args.String("db") + ")", nil
		}, WithParams(Param{Name: "db"})))

		plan := mustCompile(t, CompileOptions{
			Signature: Signature{Params: []Param{{Name: "repo"}}},
			Providers: registry,
		})

		values := NewValues()
		cleanup, err := plan.ResolveDependencies(context.Background(), values)
		require.NoError(t, err)
		defer cleanup.Close(context.Background())

		repo, ok := values.Get("repo")
		require.True(t, ok)
		assert.Equal(t, "repo(db-conn)", repo)
	})

	t.Run("providers receive extracted parameters", func(t *testing.T) {
		t.Parallel()

		registry := NewRegistry()
		require.NoError(t, registry.Provide("greeting", func(ctx context.Context, args Args) (any, error) {
			return "hello " + args.String("name"), nil
		}, WithParams(Param{Name: "name"})))

		plan := mustCompile(t, CompileOptions{
			Signature: Signature{Params: []Param{{Name: "greeting"}}},
			Providers: registry,
		})

		conn := NewConnection(httptest.NewRequest(http.MethodGet, "/?name=ada", nil))
		values := extractFrom(t, plan, conn)

		cleanup, err := plan.ResolveDependencies(context.Background(), values)
		require.NoError(t, err)
		defer cleanup.Close(context.Background())

		greeting, _ := values.Get("greeting")
		assert.Equal(t, "hello ada", greeting)
	})

	t.Run("independent providers run concurrently", func(t *testing.T) {
		t.Parallel()

		registry := NewRegistry()
		slow := func(ctx context.Context, args Args) (any, error) {
			time.Sleep(50 * time.Millisecond)
			return "done", nil
		}
		require.NoError(t, registry.Provide("left", slow))
		require.NoError(t, registry.Provide("right", slow))

		plan := mustCompile(t, CompileOptions{
			Signature: Signature{Params: []Param{{Name: "left"}, {Name: "right"}}},
			Providers: registry,
		})

		start := time.Now()
		cleanup, err := plan.ResolveDependencies(context.Background(), NewValues())
		require.NoError(t, err)
		defer cleanup.Close(context.Background())

		assert.Less(t, time.Since(start), 90*time.Millisecond)
	})

	t.Run("provider failure wraps the key", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("connect refused")
		registry := NewRegistry()
		require.NoError(t, registry.Provide("db", func(ctx context.Context, args Args) (any, error) {
			return nil, boom
		}))

		plan := mustCompile(t, CompileOptions{
			Signature: Signature{Params: []Param{{Name: "db"}}},
			Providers: registry,
		})

		cleanup, err := plan.ResolveDependencies(context.Background(), NewValues())
		require.NotNil(t, cleanup)

		var provErr *ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, "db", provErr.Key)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("a failing batch member cancels its siblings", func(t *testing.T) {
		t.Parallel()

		siblingCancelled := make(chan bool, 1)

		registry := NewRegistry()
		require.NoError(t, registry.Provide("failing", func(ctx context.Context, args Args) (any, error) {
			return nil, errors.New("boom")
		}))
		require.NoError(t, registry.Provide("sibling", func(ctx context.Context, args Args) (any, error) {
			select {
			case <-ctx.Done():
				siblingCancelled <- true
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
				siblingCancelled <- false
				return "too late", nil
			}
		}))

		plan := mustCompile(t, CompileOptions{
			Signature: Signature{Params: []Param{{Name: "failing"}, {Name: "sibling"}}},
			Providers: registry,
		})

		cleanup, err := plan.ResolveDependencies(context.Background(), NewValues())
		require.NotNil(t, cleanup)
		defer cleanup.Close(context.Background())

		var provErr *ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, "failing", provErr.Key)
		assert.True(t, <-siblingCancelled)
	})

	t.Run("resources acquired before a failure are still released", func(t *testing.T) {
		t.Parallel()

		var released atomic.Int32

		registry := NewRegistry()
		require.NoError(t, registry.Provide("conn", func(ctx context.Context, args Args) (any, error) {
			return NewScoped("conn", func(ctx context.Context) error {
				released.Add(1)
				return nil
			}), nil
		}))
		require.NoError(t, registry.Provide("tx", func(ctx context.Context, args Args) (any, error) {
			return nil, errors.New("begin failed")
		}, WithParams(Param{Name: "conn"})))

		plan := mustCompile(t, CompileOptions{
			Signature: Signature{Params: []Param{{Name: "tx"}}},
			Providers: registry,
		})

		cleanup, err := plan.ResolveDependencies(context.Background(), NewValues())
		require.Error(t, err)
		require.NotNil(t, cleanup)

		require.NoError(t, cleanup.Close(context.Background()))
		assert.Equal(t, int32(1), released.Load())
	})

	t.Run("scoped values are unwrapped before storage", func(t *testing.T) {
		t.Parallel()

		registry := NewRegistry()
		require.NoError(t, registry.Provide("conn", func(ctx context.Context, args Args) (any, error) {
			return NewScoped("the-conn", func(ctx context.Context) error { return nil }), nil
		}))

		plan := mustCompile(t, CompileOptions{
			Signature: Signature{Params: []Param{{Name: "conn"}}},
			Providers: registry,
		})

		values := NewValues()
		cleanup, err := plan.ResolveDependencies(context.Background(), values)
		require.NoError(t, err)
		defer cleanup.Close(context.Background())

		conn, _ := values.Get("conn")
		assert.Equal(t, "the-conn", conn)
		assert.Equal(t, 1, cleanup.Len())
	})

	t.Run("body-consuming provider awaits the decode", func(t *testing.T) {
		t.Parallel()

		registry := NewRegistry()
		require.NoError(t, registry.Provide("payload", func(ctx context.Context, args Args) (any, error) {
			body := args["data"].(map[string]any)
			return body["name"], nil
		}, WithSignature(Signature{Params: []Param{{Name: "data"}}})))

		plan := mustCompile(t, CompileOptions{
			Signature: Signature{Params: []Param{{Name: "payload"}}},
			Providers: registry,
		})

		r := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"name":"widget"}`))
		values := extractFrom(t, plan, NewConnection(r))

		cleanup, err := plan.ResolveDependencies(context.Background(), values)
		require.NoError(t, err)
		defer cleanup.Close(context.Background())

		payload, _ := values.Get("payload")
		assert.Equal(t, "widget", payload)
	})
}

func TestProviderCache(t *testing.T) {
	t.Parallel()

	t.Run("cached provider runs once across requests", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		registry := NewRegistry()
		require.NoError(t, registry.Provide("config", func(ctx context.Context, args Args) (any, error) {
			calls.Add(1)
			return "loaded", nil
		}, WithCache()))

		plan := mustCompile(t, CompileOptions{
			Signature: Signature{Params: []Param{{Name: "config"}}},
			Providers: registry,
		})

		for i := 0; i < 3; i++ {
			values := NewValues()
			cleanup, err := plan.ResolveDependencies(context.Background(), values)
			require.NoError(t, err)
			require.NoError(t, cleanup.Close(context.Background()))

			config, _ := values.Get("config")
			assert.Equal(t, "loaded", config)
		}

		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("uncached provider runs per request", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		registry := NewRegistry()
		require.NoError(t, registry.Provide("fresh", func(ctx context.Context, args Args) (any, error) {
			calls.Add(1)
			return calls.Load(), nil
		}))

		plan := mustCompile(t, CompileOptions{
			Signature: Signature{Params: []Param{{Name: "fresh"}}},
			Providers: registry,
		})

		for i := 0; i < 2; i++ {
			cleanup, err := plan.ResolveDependencies(context.Background(), NewValues())
			require.NoError(t, err)
			require.NoError(t, cleanup.Close(context.Background()))
		}

		assert.Equal(t, int32(2), calls.Load())
	})
}
