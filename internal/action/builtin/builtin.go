// Package builtin registers the functions shipped with the node binary:
// test.*, status.*, net.speedtest and, on Linux, service.*.
package builtin

import "fleetsched/internal/action"

// Register wires every builtin function into the registry.
func Register(reg *action.Registry) {
	registerTest(reg)
	registerStatus(reg)
	registerNet(reg)
	registerService(reg)
}
