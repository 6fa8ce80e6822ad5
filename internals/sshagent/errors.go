package sshagent

import (
	"github.com/secrethub/secrethub-go/internals/errio"
)

// Errors
var (
	errSSHAgent = errio.Namespace("ssh_agent")

	ErrUnlockTimeout      = errSSHAgent.Code("unlock_timeout").Error("timed out waiting for the vault to be unlocked")
	ErrStatusStreamClosed = errSSHAgent.Code("status_stream_closed").Error("the account status stream ended while waiting for the vault to be unlocked")
	ErrAgentNotLoaded     = errSSHAgent.Code("agent_not_loaded").Error("the SSH agent endpoint is not loaded")
)
