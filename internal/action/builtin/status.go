package builtin

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"fleetsched/internal/action"
)

func registerStatus(reg *action.Registry) {
	reg.Register("status.uptime", statusUptime)
	reg.Register("status.loadavg", statusLoadavg)
	reg.Register("status.meminfo", statusMeminfo)
	reg.Register("status.diskusage", statusDiskusage)
}

func statusUptime(ctx context.Context, _ action.Call) (any, error) {
	secs, err := host.UptimeWithContext(ctx)
	if err != nil {
		return nil, err
	}
	boot, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"seconds": secs,
		"since":   time.Unix(int64(boot), 0).UTC().Format(time.RFC3339),
	}, nil
}

func statusLoadavg(ctx context.Context, _ action.Call) (any, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"1-min":  avg.Load1,
		"5-min":  avg.Load5,
		"15-min": avg.Load15,
	}, nil
}

func statusMeminfo(ctx context.Context, _ action.Call) (any, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"total":        vm.Total,
		"available":    vm.Available,
		"used":         vm.Used,
		"used_percent": vm.UsedPercent,
	}, nil
}

// statusDiskusage reports usage for the path given as the first argument,
// defaulting to the filesystem root.
func statusDiskusage(ctx context.Context, call action.Call) (any, error) {
	path := "/"
	if len(call.Args) > 0 {
		if s, ok := call.Args[0].(string); ok && s != "" {
			path = s
		}
	}
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"path":         u.Path,
		"total":        u.Total,
		"free":         u.Free,
		"used":         u.Used,
		"used_percent": u.UsedPercent,
	}, nil
}
