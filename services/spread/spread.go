package spread

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"scaledemo/services/info"
)

const DefaultRequests = 20

var (
	ErrNoRequests  = func() error { return fmt.Errorf("number of requests must be positive") }
	ErrNoSelector  = func() error { return fmt.Errorf("no selector provided") }
	ErrAllFailed   = func(n int, err error) error { return fmt.Errorf("all %d requests failed, last error: %s", n, err) }
	ErrBadStatus   = func(code int) error { return fmt.Errorf("unexpected status %d", code) }
	ErrBadResponse = func(err error) error { return fmt.Errorf("could not decode identity: %s", err) }
)

// Selector picks the base URL the next request is sent to.
type Selector interface {
	Select() (string, error)
}

// Probe sends requests to one or more entry points of the service and
// records which pod and node answered each of them.
type Probe struct {
	Client   *http.Client
	Selector Selector
	Requests int
}

type Count struct {
	Name string
	Hits int
}

type Report struct {
	Total    int
	Failures int
	Pods     map[string]int
	Nodes    map[string]int
	// pod name -> node name, as last reported
	Placement map[string]string
}

// Run sends Requests requests, stopping early if ctx is done.
func (p *Probe) Run(ctx context.Context) (Report, error) {
	report := Report{Pods: map[string]int{}, Nodes: map[string]int{}, Placement: map[string]string{}}
	if p.Requests < 1 {
		return report, ErrNoRequests()
	}
	if p.Selector == nil {
		return report, ErrNoSelector()
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	var lastErr error
	for i := 0; i < p.Requests; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Total++
		target, err := p.Selector.Select()
		if err != nil {
			return report, err
		}
		snapshot, err := fetch(ctx, client, target)
		if err != nil {
			slog.Debug("probe request failed", "target", target, "error", err)
			report.Failures++
			lastErr = err
			continue
		}
		report.Pods[snapshot.PodName]++
		report.Nodes[snapshot.NodeName]++
		report.Placement[snapshot.PodName] = snapshot.NodeName
	}
	if report.Failures == report.Total {
		return report, ErrAllFailed(report.Total, lastErr)
	}
	return report, nil
}

func fetch(ctx context.Context, client *http.Client, target string) (info.Snapshot, error) {
	var snapshot info.Snapshot
	url := strings.TrimSuffix(target, "/") + info.RouteInfo
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return snapshot, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return snapshot, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return snapshot, ErrBadStatus(resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return snapshot, ErrBadResponse(err)
	}
	return snapshot, nil
}

// SortedPods returns pod hit counts, busiest first.
func (r Report) SortedPods() []Count {
	return sorted(r.Pods)
}

// SortedNodes returns node hit counts, busiest first.
func (r Report) SortedNodes() []Count {
	return sorted(r.Nodes)
}

func sorted(hits map[string]int) []Count {
	counts := make([]Count, 0, len(hits))
	for name, n := range hits {
		counts = append(counts, Count{Name: name, Hits: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Hits != counts[j].Hits {
			return counts[i].Hits > counts[j].Hits
		}
		return counts[i].Name < counts[j].Name
	})
	return counts
}

// Print writes the report as a plain text table.
func (r Report) Print(w io.Writer) {
	fmt.Fprintf(w, "requests: %d  failures: %d\n\n", r.Total, r.Failures)
	fmt.Fprintf(w, "%-40s %-24s %6s\n", "POD", "NODE", "HITS")
	for _, c := range r.SortedPods() {
		fmt.Fprintf(w, "%-40s %-24s %6d\n", c.Name, r.Placement[c.Name], c.Hits)
	}
	fmt.Fprintf(w, "\n%-40s %6s\n", "NODE", "HITS")
	for _, c := range r.SortedNodes() {
		fmt.Fprintf(w, "%-40s %6d\n", c.Name, c.Hits)
	}
}
