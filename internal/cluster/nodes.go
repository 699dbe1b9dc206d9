package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

const DefaultListTimeout = 2 * time.Second

const nodesKey = "nodes"

var (
	ErrInClusterConfig = func(err error) error { return fmt.Errorf("error getting in-cluster config: %s", err) }
	ErrClientset       = func(err error) error { return fmt.Errorf("error creating clientset: %s", err) }
	ErrListNodes       = func(err error) error { return fmt.Errorf("error listing nodes: %s", err) }
)

type Counter interface {
	Count(ctx context.Context) (int, error)
}

// NodeCounter counts the nodes registered with the API server.
// Counts are reused for ttl so page loads don't each hit the API server.
type NodeCounter struct {
	client  kubernetes.Interface
	timeout time.Duration
	cache   *expirable.LRU[string, int]
}

func NewNodeCounter(client kubernetes.Interface, ttl time.Duration, timeout time.Duration) *NodeCounter {
	if timeout <= 0 {
		timeout = DefaultListTimeout
	}
	return &NodeCounter{
		client:  client,
		timeout: timeout,
		cache:   expirable.NewLRU[string, int](1, nil, ttl),
	}
}

// NewInCluster builds a NodeCounter from the pod's service account.
func NewInCluster(ttl time.Duration, timeout time.Duration) (*NodeCounter, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		return nil, ErrInClusterConfig(err)
	}
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, ErrClientset(err)
	}
	return NewNodeCounter(clientset, ttl, timeout), nil
}

func (c *NodeCounter) Count(ctx context.Context) (int, error) {
	if n, ok := c.cache.Get(nodesKey); ok {
		return n, nil
	}

	ctx, cancelFunc := context.WithTimeout(ctx, c.timeout)
	defer cancelFunc()
	nodes, err := c.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return 0, ErrListNodes(err)
	}
	n := len(nodes.Items)
	c.cache.Add(nodesKey, n)
	return n, nil
}
