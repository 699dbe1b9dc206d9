package randomSelector

import (
	"fmt"
	"math/rand"
	"sync"
)

// Random Selects targets uniformly at random
type Random struct {
	mu      *sync.Mutex
	targets map[string]struct{}
	order   []string
}

func New(targets ...string) *Random {
	r := &Random{targets: make(map[string]struct{}, 0), mu: &sync.Mutex{}}
	for _, t := range targets {
		r.Add(t)
	}
	return r
}

func (r *Random) Select() (string, error) {
	defer r.mu.Unlock()
	r.mu.Lock()
	if len(r.order) == 0 {
		return "", fmt.Errorf("selector has no targets to select")
	}
	return r.order[rand.Intn(len(r.order))], nil
}

func (r *Random) Targets() []string {
	defer r.mu.Unlock()
	r.mu.Lock()
	return append([]string(nil), r.order...)
}

func (r *Random) Add(target string) error {
	defer r.mu.Unlock()
	r.mu.Lock()
	if _, ok := r.targets[target]; ok {
		return nil
	}
	r.targets[target] = struct{}{}
	r.order = append(r.order, target)
	return nil
}

func (r *Random) Remove(target string) error {
	defer r.mu.Unlock()
	r.mu.Lock()
	if _, ok := r.targets[target]; !ok {
		return fmt.Errorf("could not find target to delete %q", target)
	}
	delete(r.targets, target)
	for i, t := range r.order {
		if t == target {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
