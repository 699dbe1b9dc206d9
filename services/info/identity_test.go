package info

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/require"

	"scaledemo/internal/mock"
)

var podEnvKeys = []string{"HOSTNAME", "POD_IP", "NODE_NAME", "NODE_IP", "POD_NAMESPACE"}

var fullEnv = map[string]string{
	"HOSTNAME":      "web-7d8f9-x2k4p",
	"POD_IP":        "10.1.2.3",
	"NODE_NAME":     "node-1",
	"NODE_IP":       "192.168.1.10",
	"POD_NAMESPACE": "production",
}

var fixedTime = time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)

func newTestGatherer(env map[string]string, resolver HostResolver) *Gatherer {
	return &Gatherer{
		Lookuper:       envconfig.MapLookuper(env),
		Resolver:       resolver,
		Hostname:       func() (string, error) { return "web-7d8f9-x2k4p", nil },
		Clock:          func() time.Time { return fixedTime },
		ResolveTimeout: time.Second,
	}
}

type gathererTest struct {
	name     string
	testFunc func(t *testing.T)
}

func (g gathererTest) Run(t *testing.T) {
	g.testFunc(t)
}

func TestSnapshotFieldsNeverEmpty(t *testing.T) {
	resolvers := map[string]HostResolver{
		"resolves": mock.StaticResolver("10.9.8.7"),
		"fails":    mock.FailingResolver(),
	}
	for resolverName, resolver := range resolvers {
		// every subset of the pod variables, present or absent
		for mask := 0; mask < 1<<len(podEnvKeys); mask++ {
			env := map[string]string{}
			for i, key := range podEnvKeys {
				if mask&(1<<i) != 0 {
					env[key] = fullEnv[key]
				}
			}
			s := newTestGatherer(env, resolver).Snapshot(context.Background())

			data, err := json.Marshal(s)
			require.NoError(t, err)
			fields := map[string]string{}
			require.NoError(t, json.Unmarshal(data, &fields))
			require.Len(t, fields, 8)
			for key, value := range fields {
				require.NotEmptyf(t, value, "resolver %s, mask %05b: %s is empty", resolverName, mask, key)
			}
		}
	}
}

func TestSnapshot(t *testing.T) {
	scenarios := []*gathererTest{
		{
			name: "Env: all values set",
			testFunc: func(t *testing.T) {
				s := newTestGatherer(fullEnv, mock.FailingResolver()).Snapshot(context.Background())
				require.Equal(t, Snapshot{
					DemoAuthor: DemoAuthor,
					Website:    Website,
					PodName:    "web-7d8f9-x2k4p",
					PodIP:      "10.1.2.3",
					NodeName:   "node-1",
					NodeIP:     "192.168.1.10",
					Namespace:  "production",
					Timestamp:  "2024-01-15 14:30:00 UTC",
				}, s)
			},
		},
		{
			name: "Env: nothing set",
			testFunc: func(t *testing.T) {
				s := newTestGatherer(map[string]string{}, mock.FailingResolver()).Snapshot(context.Background())
				require.Equal(t, FallbackPodName, s.PodName)
				require.Equal(t, FallbackPodIP, s.PodIP)
				require.Equal(t, FallbackNodeName, s.NodeName)
				require.Equal(t, FallbackNodeIP, s.NodeIP)
				require.Equal(t, FallbackNamespace, s.Namespace)
			},
		},
		{
			name: "Env: empty values count as unset",
			testFunc: func(t *testing.T) {
				env := map[string]string{}
				for _, key := range podEnvKeys {
					env[key] = ""
				}
				s := newTestGatherer(env, mock.StaticResolver("10.9.8.7")).Snapshot(context.Background())
				require.Equal(t, FallbackPodName, s.PodName)
				require.Equal(t, "10.9.8.7", s.PodIP)
				require.Equal(t, FallbackNodeName, s.NodeName)
				require.Equal(t, FallbackNodeIP, s.NodeIP)
				require.Equal(t, FallbackNamespace, s.Namespace)
			},
		},
		{
			name: "PodIP: resolved from hostname, IPv4 preferred",
			testFunc: func(t *testing.T) {
				var asked string
				resolver := mock.ResolverFunc(func(ctx context.Context, host string) ([]net.IPAddr, error) {
					asked = host
					return []net.IPAddr{{IP: net.ParseIP("fd00::1")}, {IP: net.ParseIP("10.1.2.3")}}, nil
				})
				s := newTestGatherer(map[string]string{}, resolver).Snapshot(context.Background())
				require.Equal(t, "web-7d8f9-x2k4p", asked)
				require.Equal(t, "10.1.2.3", s.PodIP)
			},
		},
		{
			name: "PodIP: IPv6 only host",
			testFunc: func(t *testing.T) {
				s := newTestGatherer(map[string]string{}, mock.StaticResolver("fd00::1")).Snapshot(context.Background())
				require.Equal(t, "fd00::1", s.PodIP)
			},
		},
		{
			name: "PodIP: env wins over resolver",
			testFunc: func(t *testing.T) {
				called := false
				resolver := mock.ResolverFunc(func(ctx context.Context, host string) ([]net.IPAddr, error) {
					called = true
					return nil, nil
				})
				s := newTestGatherer(map[string]string{"POD_IP": "10.0.0.1"}, resolver).Snapshot(context.Background())
				require.Equal(t, "10.0.0.1", s.PodIP)
				require.False(t, called)
			},
		},
		{
			name: "PodIP: resolution failure degrades and is counted",
			testFunc: func(t *testing.T) {
				g := newTestGatherer(map[string]string{}, mock.FailingResolver())
				g.ResolveFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "test_resolve_failures"})
				s := g.Snapshot(context.Background())
				require.Equal(t, FallbackPodIP, s.PodIP)
				require.Equal(t, float64(1), testutil.ToFloat64(g.ResolveFailures))
			},
		},
		{
			name: "PodIP: empty answer degrades",
			testFunc: func(t *testing.T) {
				s := newTestGatherer(map[string]string{}, mock.StaticResolver()).Snapshot(context.Background())
				require.Equal(t, FallbackPodIP, s.PodIP)
			},
		},
		{
			name: "PodIP: hostname failure skips resolver",
			testFunc: func(t *testing.T) {
				called := false
				g := newTestGatherer(map[string]string{}, mock.ResolverFunc(func(ctx context.Context, host string) ([]net.IPAddr, error) {
					called = true
					return nil, nil
				}))
				g.Hostname = func() (string, error) { return "", errors.New("uts namespace unavailable") }
				s := g.Snapshot(context.Background())
				require.Equal(t, FallbackPodIP, s.PodIP)
				require.False(t, called)
			},
		},
		{
			name: "PodIP: stalled resolver is cut off by timeout",
			testFunc: func(t *testing.T) {
				g := newTestGatherer(map[string]string{}, mock.ResolverFunc(func(ctx context.Context, host string) ([]net.IPAddr, error) {
					<-ctx.Done()
					return nil, ctx.Err()
				}))
				g.ResolveTimeout = time.Millisecond * 20
				start := time.Now()
				s := g.Snapshot(context.Background())
				require.Equal(t, FallbackPodIP, s.PodIP)
				require.Less(t, time.Since(start), time.Second)
			},
		},
		{
			name: "Timestamp: converted to UTC",
			testFunc: func(t *testing.T) {
				g := newTestGatherer(fullEnv, nil)
				g.Clock = func() time.Time {
					return time.Date(2024, 1, 15, 16, 30, 0, 0, time.FixedZone("EET", 2*60*60))
				}
				s := g.Snapshot(context.Background())
				require.Equal(t, "2024-01-15 14:30:00 UTC", s.Timestamp)
			},
		},
	}

	for _, scenario := range scenarios {
		t.Run(scenario.name, func(t *testing.T) { scenario.Run(t) })
	}
}
