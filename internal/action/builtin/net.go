package builtin

import (
	"context"
	"errors"
	"sort"
	"time"

	st "github.com/showwin/speedtest-go/speedtest"

	"fleetsched/internal/action"
)

func registerNet(reg *action.Registry) {
	reg.Register("net.speedtest", netSpeedtest)
}

// netSpeedtest runs a download/upload test against the nearest speedtest
// server. Kwargs: "max_connections" caps parallel streams.
//
// Package-level speedtest helpers keep global state, so a fresh client is
// built for every run.
func netSpeedtest(ctx context.Context, call action.Call) (any, error) {
	maxConn := 4
	if v, ok := call.Kwargs["max_connections"]; ok {
		if f, ok := v.(float64); ok && f > 0 {
			maxConn = int(f)
		}
	}

	stc := st.New(st.WithUserConfig(&st.UserConfig{MaxConnections: maxConn}))
	defer func() {
		stc.Snapshots().Clean()
		stc.Reset()
	}()

	servers, err := stc.FetchServerListContext(ctx)
	if err != nil {
		return nil, err
	}
	if a := servers.Available(); a != nil {
		servers = *a
	}
	if len(servers) == 0 {
		return nil, errors.New("net.speedtest: no servers available")
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Distance < servers[j].Distance })
	srv := servers[0]

	if err := srv.PingTestContext(ctx, nil); err != nil {
		return nil, err
	}
	if err := srv.DownloadTestContext(ctx); err != nil {
		return nil, err
	}
	if err := srv.UploadTestContext(ctx); err != nil {
		return nil, err
	}

	return map[string]any{
		"server":        srv.Name,
		"sponsor":       srv.Sponsor,
		"latency_ms":    float64(srv.Latency) / float64(time.Millisecond),
		"download_mbps": srv.DLSpeed.Mbps(),
		"upload_mbps":   srv.ULSpeed.Mbps(),
	}, nil
}
