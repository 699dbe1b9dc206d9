//go:build integration
// +build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"scaledemo/services/info"
)

const (
	imgVersion       = ":latest"
	imageRepo        = "scaledemo"
	buildContextPath = "../../"
)

var listenPort = nat.Port(info.DefaultListenPort + "/tcp")

func createDockerClient() (*client.Client, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

func createContainer(ctx context.Context, cli *client.Client, config *container.Config, containerName string) (string, error) {
	resp, err := cli.ContainerCreate(ctx, config, &container.HostConfig{}, nil, nil, containerName)
	if err != nil {
		return "", fmt.Errorf("error creating Docker container: %v", err)
	}
	return resp.ID, nil
}

func startContainer(ctx context.Context, cli *client.Client, containerID string) error {
	if err := cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return fmt.Errorf("error starting Docker container: %v", err)
	}
	return nil
}

func cleanupContainer(ctx context.Context, cli *client.Client, containerID string) error {
	if err := cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		slog.Error(fmt.Sprintf("error removing Docker container: %v", err))
		return err
	}
	cli.ContainerWait(ctx, containerID, container.WaitConditionRemoved)
	return nil
}

func getContainerLogs(ctx context.Context, cli *client.Client, containerID string) (string, error) {
	out, err := cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", fmt.Errorf("error fetching Docker container logs: %v", err)
	}
	defer out.Close()

	stdout, err := io.ReadAll(out)
	if err != nil {
		return "", fmt.Errorf("error reading Docker container logs: %v", err)
	}
	return string(stdout), nil
}

// getContainerIdentity returns the bridge IP and the hostname docker gave the container.
func getContainerIdentity(ctx context.Context, cli *client.Client, containerID string) (string, string, error) {
	inspect, err := cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", "", err
	}
	return inspect.NetworkSettings.IPAddress, inspect.Config.Hostname, nil
}

type podContainer struct {
	ID       string
	IP       string
	Hostname string
}

func (p podContainer) URL() string {
	return "http://" + p.IP + ":" + info.DefaultListenPort
}

// setupPods starts n containers of the image, each with the given extra environment,
// and waits until every one of them serves requests.
func setupPods(t *testing.T, n int, env ...string) []podContainer {
	ctx := context.Background()
	cli, err := createDockerClient()
	require.NoError(t, err)

	pods := make([]podContainer, 0, n)
	for i := 0; i < n; i++ {
		config := &container.Config{
			Image:        imageRepo + imgVersion,
			Env:          env,
			ExposedPorts: nat.PortSet{listenPort: struct{}{}},
		}
		name := strings.ToLower(strings.ReplaceAll(t.Name(), "/", "-")) + "-" + uuid.NewString()[:4]
		containerID, err := createContainer(ctx, cli, config, name)
		require.NoError(t, err)
		t.Cleanup(func() {
			o, _ := getContainerLogs(ctx, cli, containerID)
			t.Log(o)
			cleanupContainer(context.Background(), cli, containerID)
		})
		require.NoError(t, startContainer(ctx, cli, containerID))

		var pod podContainer
		require.Eventually(t, func() bool {
			ip, hostname, err := getContainerIdentity(ctx, cli, containerID)
			pod = podContainer{ID: containerID, IP: ip, Hostname: hostname}
			return err == nil && ip != ""
		}, time.Second*10, time.Millisecond*30)

		require.Eventually(t, func() bool {
			o, err := getContainerLogs(ctx, cli, containerID)
			return err == nil && strings.Contains(o, "info server starting")
		}, time.Second*10, time.Millisecond*30)
		pods = append(pods, pod)
	}
	return pods
}
