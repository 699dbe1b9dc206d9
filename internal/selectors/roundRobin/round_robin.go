package roundRobin

import (
	"fmt"
	"sync"
)

// RoundRobin Selects targets sequentially (in a structured order)
type RoundRobin struct {
	mu      *sync.Mutex
	targets []string
	currIdx int
}

func New(targets ...string) *RoundRobin {
	r := &RoundRobin{targets: make([]string, 0), currIdx: 0, mu: &sync.Mutex{}}
	for _, t := range targets {
		r.Add(t)
	}
	return r
}

func (r *RoundRobin) Select() (string, error) {
	defer r.mu.Unlock()
	r.mu.Lock()
	if len(r.targets) <= 0 {
		return "", fmt.Errorf("selector has no targets to select")
	}
	if r.currIdx >= len(r.targets) {
		r.currIdx = 0
	}
	selected := r.targets[r.currIdx]
	r.currIdx++
	return selected, nil
}

func (r *RoundRobin) Targets() []string {
	defer r.mu.Unlock()
	r.mu.Lock()
	return append([]string(nil), r.targets...)
}

func (r *RoundRobin) Add(target string) error {
	defer r.mu.Unlock()
	r.mu.Lock()
	r.targets = append(r.targets, target)
	return nil
}

func (r *RoundRobin) Remove(target string) error {
	defer r.mu.Unlock()
	r.mu.Lock()
	for i, t := range r.targets {
		if t == target {
			r.targets = append(r.targets[:i], r.targets[i+1:]...)
			if r.currIdx > i {
				r.currIdx--
			}
			return nil
		}
	}
	return fmt.Errorf("could not find target to delete %q", target)
}
