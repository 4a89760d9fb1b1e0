//go:build !linux

package builtin

import (
	"context"
	"errors"

	"fleetsched/internal/action"
)

var errServiceUnsupported = errors.New("service.* requires systemd (linux only)")

func registerService(reg *action.Registry) {
	reg.Register("service.status", serviceUnsupported)
	reg.Register("service.restart", serviceUnsupported)
}

func serviceUnsupported(context.Context, action.Call) (any, error) {
	return nil, errServiceUnsupported
}
