package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/gluufederation/shibwatcher/pkg/archive"
	"github.com/gluufederation/shibwatcher/pkg/errors"
	"github.com/gluufederation/shibwatcher/pkg/target"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// engineAPI is the subset of the Docker client used by the backend.
type engineAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerExecCreate(ctx context.Context, container string, options container.ExecOptions) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader, options container.CopyToContainerOptions) error
	Close() error
}

// Backend lists and copies files into containers on the local Docker engine.
type Backend struct {
	client engineAPI
	label  string
}

// New connects to the Docker engine described by the environment (by default,
// the local unix socket). It fails with errors.BackendUnavailable if the
// engine can't be reached.
func New(ctx context.Context, label string) (*Backend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.BackendUnavailable{Backend: "docker", Err: err}
	}

	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, errors.BackendUnavailable{Backend: "docker", Err: err}
	}
	return &Backend{client: cli, label: label}, nil
}

// Close releases the connection to the engine.
func (b *Backend) Close() error {
	return b.client.Close()
}

// ListTargets returns the running containers that carry the target label.
func (b *Backend) ListTargets(ctx context.Context) ([]target.Target, error) {
	opts := container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("label", b.label)),
	}
	containers, err := b.client.ContainerList(ctx, opts)
	if err != nil {
		return nil, errors.WithContext(err, "list containers")
	}

	var targets []target.Target
	for _, c := range containers {
		targets = append(targets, target.Target{
			Name:    containerName(c),
			ID:      c.ID,
			Address: containerAddress(c),
		})
	}
	return targets, nil
}

func containerName(c types.Container) string {
	if len(c.Names) == 0 {
		return c.ID
	}
	return strings.TrimPrefix(c.Names[0], "/")
}

// containerAddress returns the IP of the container on the alphabetically
// first network that assigned one.
func containerAddress(c types.Container) string {
	if c.NetworkSettings == nil {
		return ""
	}

	var networks []string
	for name := range c.NetworkSettings.Networks {
		networks = append(networks, name)
	}
	sort.Strings(networks)

	for _, name := range networks {
		endpoint := c.NetworkSettings.Networks[name]
		if endpoint != nil && endpoint.IPAddress != "" {
			return endpoint.IPAddress
		}
	}
	return ""
}

// CopyFile uploads `path` into the container at the same location.
func (b *Backend) CopyFile(ctx context.Context, t target.Target, path string) error {
	tarPath, err := writeArchive(path)
	if err != nil {
		return errors.WithContext(err, "build archive")
	}
	defer func() {
		if err := fs.Remove(tarPath); err != nil {
			log.WithError(err).WithField("path", tarPath).Warn("Failed to remove temporary archive")
		}
	}()

	mkdir := []string{"mkdir", "-p", filepath.Dir(path)}
	if err := b.exec(ctx, t, mkdir); err != nil {
		return errors.WithContext(err, "make parent directory")
	}

	tarFile, err := fs.Open(tarPath)
	if err != nil {
		return errors.WithContext(err, "open archive")
	}
	defer tarFile.Close()

	err = b.client.CopyToContainer(ctx, t.ID, "/", tarFile, container.CopyToContainerOptions{})
	if err != nil {
		return errors.WithContext(err, "upload archive")
	}
	return nil
}

// writeArchive builds the archive for `path` in a temporary file, and returns
// the path to the archive. The caller is responsible for removing it.
func writeArchive(path string) (string, error) {
	tarFile, err := afero.TempFile(fs, "", "shibwatcher-*.tar")
	if err != nil {
		return "", errors.WithContext(err, "create temporary file")
	}

	writeErr := archive.WriteFile(tarFile, path)
	closeErr := tarFile.Close()
	if writeErr != nil || closeErr != nil {
		_ = fs.Remove(tarFile.Name())
		if writeErr != nil {
			return "", writeErr
		}
		return "", errors.WithContext(closeErr, "close")
	}
	return tarFile.Name(), nil
}

// DeleteFile removes `path` from the container. Removing a path that
// doesn't exist succeeds.
func (b *Backend) DeleteFile(ctx context.Context, t target.Target, path string) error {
	return b.exec(ctx, t, []string{"rm", "-f", path})
}

// exec runs `cmd` in the container and waits for it to exit. The output is
// always drained so that the command can't block on a full pipe.
func (b *Backend) exec(ctx context.Context, t target.Target, cmd []string) error {
	created, err := b.client.ContainerExecCreate(ctx, t.ID, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return errors.WithContext(err, "create exec")
	}

	resp, err := b.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return errors.WithContext(err, "attach exec")
	}
	defer resp.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, resp.Reader); err != nil {
		return errors.WithContext(err, "read exec output")
	}

	inspect, err := b.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return errors.WithContext(err, "inspect exec")
	}

	log.WithFields(log.Fields{
		"target":   t.String(),
		"command":  strings.Join(cmd, " "),
		"stdout":   stdout.String(),
		"exitCode": inspect.ExitCode,
	}).Debug("Executed command")

	if inspect.ExitCode != 0 {
		return errors.RemoteCommandError{
			Command:  cmd,
			ExitCode: inspect.ExitCode,
			Stderr:   stderr.String(),
		}
	}
	return nil
}

func (b *Backend) String() string {
	return fmt.Sprintf("docker (%s)", b.label)
}
