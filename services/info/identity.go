package info

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sethvargo/go-envconfig"
)

const (
	DemoAuthor = "Rick Houser"
	Website    = "https://rickhouser.me"

	FallbackPodName   = "unknown-pod"
	FallbackPodIP     = "unknown-pod-ip"
	FallbackNodeName  = "unknown-node"
	FallbackNodeIP    = "unknown-node-ip"
	FallbackNamespace = "default"

	TimestampLayout = "2006-01-02 15:04:05 UTC"
)

var (
	ErrHostnameUnavailable = func(err error) error { return fmt.Errorf("hostname unavailable: %s", err) }
	ErrResolveFailed       = func(host string, err error) error { return fmt.Errorf("failed to resolve %q: %s", host, err) }
	ErrNoAddresses         = func(host string) error { return fmt.Errorf("no addresses found for %q", host) }
)

// Snapshot is the identity of the instance serving a single request.
// Every field is always non-empty.
type Snapshot struct {
	DemoAuthor string `json:"demo_author"`
	Website    string `json:"website"`
	PodName    string `json:"pod_name"`
	PodIP      string `json:"pod_ip"`
	NodeName   string `json:"node_name"`
	NodeIP     string `json:"node_ip"`
	Namespace  string `json:"namespace"`
	Timestamp  string `json:"timestamp"`
}

// podEnv holds the variables the downward API injects into the container.
type podEnv struct {
	PodName   string `env:"HOSTNAME"`
	PodIP     string `env:"POD_IP"`
	NodeName  string `env:"NODE_NAME"`
	NodeIP    string `env:"NODE_IP"`
	Namespace string `env:"POD_NAMESPACE"`
}

type HostResolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Gatherer builds snapshots from the process environment and the host resolver.
type Gatherer struct {
	Lookuper       envconfig.Lookuper
	Resolver       HostResolver
	Hostname       func() (string, error)
	Clock          func() time.Time
	ResolveTimeout time.Duration

	// Incremented whenever the pod IP falls back to FallbackPodIP. May be nil.
	ResolveFailures prometheus.Counter
}

func NewGatherer(resolveTimeout time.Duration) *Gatherer {
	return &Gatherer{
		Lookuper:       envconfig.OsLookuper(),
		Resolver:       net.DefaultResolver,
		Hostname:       os.Hostname,
		Clock:          time.Now,
		ResolveTimeout: resolveTimeout,
	}
}

// Snapshot reads the environment once and fills every missing value with its fallback.
func (g *Gatherer) Snapshot(ctx context.Context) Snapshot {
	var env podEnv
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &env, Lookuper: g.lookuper()}); err != nil {
		slog.Warn("could not read pod environment", "error", err)
	}

	s := Snapshot{
		DemoAuthor: DemoAuthor,
		Website:    Website,
		PodName:    orDefault(env.PodName, FallbackPodName),
		PodIP:      env.PodIP,
		NodeName:   orDefault(env.NodeName, FallbackNodeName),
		NodeIP:     orDefault(env.NodeIP, FallbackNodeIP),
		Namespace:  orDefault(env.Namespace, FallbackNamespace),
		Timestamp:  g.now().UTC().Format(TimestampLayout),
	}
	if s.PodIP == "" {
		ip, err := g.resolvePodIP(ctx)
		if err != nil {
			slog.Warn("falling back to placeholder pod IP", "error", err)
			if g.ResolveFailures != nil {
				g.ResolveFailures.Inc()
			}
			ip = FallbackPodIP
		}
		s.PodIP = ip
	}
	return s
}

// resolvePodIP resolves the local hostname, preferring an IPv4 address.
func (g *Gatherer) resolvePodIP(ctx context.Context) (string, error) {
	hostname := os.Hostname
	if g.Hostname != nil {
		hostname = g.Hostname
	}
	host, err := hostname()
	if err != nil {
		return "", ErrHostnameUnavailable(err)
	}
	if host == "" {
		return "", ErrHostnameUnavailable(fmt.Errorf("empty hostname"))
	}

	timeout := g.ResolveTimeout
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	ctx, cancelFunc := context.WithTimeout(ctx, timeout)
	defer cancelFunc()

	resolver := g.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return "", ErrResolveFailed(host, err)
	}
	for _, addr := range addrs {
		if ip4 := addr.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	for _, addr := range addrs {
		if addr.IP != nil {
			return addr.IP.String(), nil
		}
	}
	return "", ErrNoAddresses(host)
}

func (g *Gatherer) lookuper() envconfig.Lookuper {
	if g.Lookuper == nil {
		return envconfig.OsLookuper()
	}
	return g.Lookuper
}

func (g *Gatherer) now() time.Time {
	if g.Clock == nil {
		return time.Now()
	}
	return g.Clock()
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
