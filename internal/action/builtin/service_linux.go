//go:build linux

package builtin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"

	"fleetsched/internal/action"
)

func registerService(reg *action.Registry) {
	reg.Register("service.status", serviceStatus)
	reg.Register("service.restart", serviceRestart)
}

func unitArg(call action.Call) (string, error) {
	if len(call.Args) == 0 {
		return "", errors.New("a service name is required")
	}
	name, ok := call.Args[0].(string)
	if !ok || name == "" {
		return "", errors.New("a service name is required")
	}
	if !strings.Contains(name, ".") {
		name += ".service"
	}
	return name, nil
}

func serviceStatus(ctx context.Context, call action.Call) (any, error) {
	unit, err := unitArg(call)
	if err != nil {
		return nil, fmt.Errorf("service.status: %w", err)
	}
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.status: connect to systemd: %w", err)
	}
	defer conn.Close()

	props, err := conn.GetUnitPropertiesContext(ctx, unit)
	if err != nil {
		return nil, fmt.Errorf("service.status: %w", err)
	}
	return map[string]any{
		"unit":      unit,
		"active":    props["ActiveState"],
		"sub_state": props["SubState"],
		"load":      props["LoadState"],
	}, nil
}

func serviceRestart(ctx context.Context, call action.Call) (any, error) {
	unit, err := unitArg(call)
	if err != nil {
		return nil, fmt.Errorf("service.restart: %w", err)
	}
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.restart: connect to systemd: %w", err)
	}
	defer conn.Close()

	done := make(chan string, 1)
	if _, err := conn.RestartUnitContext(ctx, unit, "replace", done); err != nil {
		return nil, fmt.Errorf("service.restart: %w", err)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-done:
		if result != "done" {
			return nil, fmt.Errorf("service.restart: %s: %s", unit, result)
		}
	}
	return map[string]any{"unit": unit, "restarted": true}, nil
}
