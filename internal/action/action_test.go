package action

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRegistryInvoke(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.Register("test.echo", func(_ context.Context, call Call) (any, error) {
		return call.Args[0], nil
	})

	ret, err := reg.Invoke(context.Background(), Call{Function: "test.echo", Args: []any{"hello"}})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if ret != "hello" {
		t.Fatalf("Invoke returned %v, want hello", ret)
	}
}

func TestRegistryUnknownFunction(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	_, err := reg.Invoke(context.Background(), Call{Function: "no.such"})
	if err == nil {
		t.Fatal("expected error for unknown function")
	}
	if got, want := err.Error(), "'no.such' is not available"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
}

func TestRegistryRecoverPanic(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.Register("boom", func(context.Context, Call) (any, error) {
		panic("kaboom")
	})

	_, err := reg.Invoke(context.Background(), Call{Function: "boom"})
	if err == nil {
		t.Fatal("panicking function must return an error")
	}
	if !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("error %q does not carry the panic value", err)
	}
}

func TestRegistryErrorPassthrough(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	want := errors.New("deliberate")
	reg.Register("fail", func(context.Context, Call) (any, error) {
		return nil, want
	})
	_, err := reg.Invoke(context.Background(), Call{Function: "fail"})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func TestCallStrKwarg(t *testing.T) {
	t.Parallel()
	c := Call{Kwargs: map[string]any{"mode": "fast", "n": 3}}
	if got := c.StrKwarg("mode", "slow"); got != "fast" {
		t.Fatalf("StrKwarg = %q, want fast", got)
	}
	if got := c.StrKwarg("n", "def"); got != "def" {
		t.Fatalf("StrKwarg for non-string = %q, want def", got)
	}
	if got := c.StrKwarg("missing", "def"); got != "def" {
		t.Fatalf("StrKwarg for missing = %q, want def", got)
	}
}

func TestRegistryNames(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.Register("b.two", func(context.Context, Call) (any, error) { return nil, nil })
	reg.Register("a.one", func(context.Context, Call) (any, error) { return nil, nil })
	names := reg.Names()
	if len(names) != 2 || names[0] != "a.one" || names[1] != "b.two" {
		t.Fatalf("Names = %v", names)
	}
}
