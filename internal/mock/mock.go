package mock

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
)

func RandomAddress() string {
	return fmt.Sprintf("%d.%d.%d.%d", 1+rand.Intn(253), rand.Intn(254), rand.Intn(254), 1+rand.Intn(253))
}

func RandomPort() string {
	return fmt.Sprint(1024 + rand.Intn(50000))
}

// GenerateTargets returns n distinct base URLs on random addresses.
func GenerateTargets(n int) []string {
	targets := []string{}
	seen := map[string]bool{}
	for len(targets) < n {
		t := "http://" + RandomAddress() + ":" + RandomPort()
		if seen[t] {
			continue
		}
		seen[t] = true
		targets = append(targets, t)
	}
	return targets
}

type TransPortResponseFunc func(req *http.Request) (*http.Response, error)

func (fn TransPortResponseFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return fn(req)
}

// ResolverFunc satisfies info.HostResolver.
type ResolverFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

func (fn ResolverFunc) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	return fn(ctx, host)
}

// StaticResolver always answers with the given addresses.
func StaticResolver(ips ...string) ResolverFunc {
	return func(ctx context.Context, host string) ([]net.IPAddr, error) {
		addrs := []net.IPAddr{}
		for _, ip := range ips {
			addrs = append(addrs, net.IPAddr{IP: net.ParseIP(ip)})
		}
		return addrs, nil
	}
}

// FailingResolver always fails, as a host without DNS entry would.
func FailingResolver() ResolverFunc {
	return func(ctx context.Context, host string) ([]net.IPAddr, error) {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
}
