// Package client talks to a running vaultkit agent over its control socket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/secrethub/secrethub-go/internals/errio"

	"github.com/vaultkit/vaultkit-cli/internals/cli/cloneproc"
	"github.com/vaultkit/vaultkit-cli/internals/daemon/protocol"
)

// Errors
var (
	errClient = errio.Namespace("agent_client")

	ErrAgentNotRunning = errClient.Code("not_running").Error("the vaultkit agent is not running. Start it with `vaultkit agent --daemon`")
	ErrWrongPassphrase = errClient.Code("wrong_passphrase").Error("the passphrase is incorrect")
	ErrStartTimeout    = errClient.Code("start_timeout").Error("timed out waiting for the agent to start")
	ErrRequestFailed   = errClient.Code("request_failed").ErrorPref("agent: %s")
)

const requestTimeout = 10 * time.Second

// Launcher stops and starts agent processes.
type Launcher interface {
	Stop() error
	Start() error
}

// Client calls the control API of the agent.
type Client struct {
	http     *http.Client
	version  string
	launcher Launcher
}

// New creates a Client for the agent with its socket in configDir.
// version is the version the agent is expected to run.
func New(configDir, version string) *Client {
	return NewWithLauncher(configDir, version, processLauncher{configDir: configDir})
}

// NewWithLauncher creates a Client that uses launcher to (re)start the agent.
func NewWithLauncher(configDir, version string, launcher Launcher) *Client {
	socketPath := filepath.Join(configDir, protocol.SocketName)
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				DisableKeepAlives: true,
				DialContext: func(ctx context.Context, _ string, _ string) (net.Conn, error) {
					dialer := net.Dialer{}
					return dialer.DialContext(ctx, "unix", socketPath)
				},
			},
			Timeout: requestTimeout,
		},
		version:  version,
		launcher: launcher,
	}
}

// EnsureRunning makes sure an agent of the expected version is running,
// restarting or starting it when needed.
func (c *Client) EnsureRunning(ctx context.Context) error {
	if version, err := c.Version(ctx); err == nil && version == c.version {
		return nil
	}
	if err := c.launcher.Stop(); err != nil {
		return fmt.Errorf("could not stop agent: %v", err)
	}

	if err := c.launcher.Start(); err != nil {
		return fmt.Errorf("could not start agent: %v", err)
	}

	if err := c.waitForAgent(ctx); err != nil {
		return fmt.Errorf("could not reach agent: %v", err)
	}
	return nil
}

func (c *Client) waitForAgent(ctx context.Context) error {
	backoffPeriod := time.Millisecond
	for backoffPeriod < 10*time.Second {
		_, err := c.Version(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffPeriod):
		}
		backoffPeriod *= 2
	}
	return ErrStartTimeout
}

// Version returns the version of the running agent.
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp protocol.VersionResponse
	err := c.do(ctx, http.MethodGet, "/version", nil, &resp)
	if err != nil {
		return "", err
	}
	return resp.Version, nil
}

// Status returns the accounts and SSH agent state of the running agent.
func (c *Client) Status(ctx context.Context) (*protocol.StatusResponse, error) {
	var resp protocol.StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Unlock unlocks the vault of account in the agent.
func (c *Client) Unlock(ctx context.Context, account, passphrase string) error {
	return c.do(ctx, http.MethodPost, "/unlock", protocol.UnlockRequest{
		Account:    account,
		Passphrase: passphrase,
	}, nil)
}

// Lock locks account, or all accounts when account is empty, and returns
// the accounts that were unlocked.
func (c *Client) Lock(ctx context.Context, account string) ([]string, error) {
	var resp protocol.LockResponse
	err := c.do(ctx, http.MethodPost, "/lock", protocol.LockRequest{
		Account: account,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Locked, nil
}

// Switch makes account the active account of the agent.
func (c *Client) Switch(ctx context.Context, account string) error {
	return c.do(ctx, http.MethodPost, "/switch", protocol.SwitchRequest{
		Account: account,
	}, nil)
}

func (c *Client) do(ctx context.Context, method string, path string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, "http://unix"+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrAgentNotRunning
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %v", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return ErrWrongPassphrase
	default:
		var errResp protocol.ErrorResponse
		err = json.Unmarshal(respBody, &errResp)
		if err != nil {
			return fmt.Errorf("unpack response (error %s): %v", resp.Status, err)
		}
		return ErrRequestFailed(errResp.Error)
	}

	if out == nil {
		return nil
	}
	err = json.Unmarshal(respBody, out)
	if err != nil {
		return fmt.Errorf("unpack response: %v", err)
	}
	return nil
}

// processLauncher runs the agent command of the current executable.
type processLauncher struct {
	configDir string
}

func (l processLauncher) Stop() error {
	return cloneproc.Run("agent", "--kill", "--config-dir", l.configDir)
}

func (l processLauncher) Start() error {
	return cloneproc.Spawn(l.args()...)
}

func (l processLauncher) args() []string {
	return []string{
		"agent",
		"--config-dir", l.configDir,
		"--log-file", filepath.Join(l.configDir, protocol.LogFileName),
	}
}
