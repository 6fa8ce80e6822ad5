// Package protocol defines the messages exchanged with the vaultkit agent
// over its control socket.
package protocol

const (
	SocketName  = "vaultkit.sock"
	PIDFileName = "vaultkit.pid"
	// LogFileName is the log of an agent that runs in the background.
	LogFileName = "agent.log"
)

type VersionResponse struct {
	Version string `json:"version"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type UnlockRequest struct {
	Account    string `json:"account"`
	Passphrase string `json:"passphrase"`
}

// LockRequest locks one account, or every account when Account is empty.
type LockRequest struct {
	Account string `json:"account,omitempty"`
}

type LockResponse struct {
	Locked []string `json:"locked"`
}

type SwitchRequest struct {
	Account string `json:"account"`
}

type AccountStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Active bool   `json:"active"`
	// LocksIn is the number of seconds until the account is locked
	// automatically, if it is.
	LocksIn int64 `json:"locks_in,omitempty"`
}

type SSHAgentStatus struct {
	Enabled        bool   `json:"enabled"`
	Socket         string `json:"socket"`
	PromptBehavior string `json:"prompt_behavior"`
	Remembered     int    `json:"remembered"`
}

type StatusResponse struct {
	Version  string          `json:"version"`
	PID      int             `json:"pid"`
	Accounts []AccountStatus `json:"accounts"`
	SSHAgent SSHAgentStatus  `json:"ssh_agent"`
}
