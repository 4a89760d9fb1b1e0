package builtin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleetsched/internal/action"
	"fleetsched/internal/config"
)

func registerTest(reg *action.Registry) {
	reg.Register("test.ping", testPing)
	reg.Register("test.echo", testEcho)
	reg.Register("test.sleep", testSleep)
	reg.Register("test.fail", testFail)
}

func testPing(_ context.Context, _ action.Call) (any, error) {
	return true, nil
}

// testEcho returns its first positional argument unchanged.
func testEcho(_ context.Context, call action.Call) (any, error) {
	if len(call.Args) == 0 {
		return nil, errors.New("test.echo: an argument is required")
	}
	return call.Args[0], nil
}

// testSleep blocks for the given duration ("5s" or a number of seconds),
// honoring cancellation. Useful for exercising maxrunning.
func testSleep(ctx context.Context, call action.Call) (any, error) {
	d := time.Second
	if len(call.Args) > 0 {
		var err error
		d, err = sleepDuration(call.Args[0])
		if err != nil {
			return nil, err
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		return true, nil
	}
}

func sleepDuration(v any) (time.Duration, error) {
	switch n := v.(type) {
	case string:
		return config.ParseDuration("test.sleep", n)
	case float64:
		return time.Duration(n * float64(time.Second)), nil
	case int:
		return time.Duration(n) * time.Second, nil
	default:
		return 0, fmt.Errorf("test.sleep: cannot read duration from %T", v)
	}
}

func testFail(_ context.Context, call action.Call) (any, error) {
	msg := call.StrKwarg("message", "deliberate failure")
	return nil, errors.New(msg)
}
