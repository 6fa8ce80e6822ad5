// Package daemon runs the long-lived vaultkit agent process and its
// control socket.
package daemon

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mitchellh/go-ps"
	"github.com/secrethub/secrethub-go/internals/errio"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/daemon/protocol"
)

// Errors
var (
	errDaemon = errio.Namespace("daemon")

	ErrAlreadyRunning = errDaemon.Code("already_running").ErrorPref("the agent is already running with pid %d")
	ErrPIDFileCorrupt = errDaemon.Code("pid_file_corrupt").ErrorPref("pid file %s is corrupted: %s")
	ErrStopTimeout    = errDaemon.Code("stop_timeout").Error("timed out waiting for the agent to stop")
)

const shutdownTimeout = time.Second

// Server runs the control socket of the agent and keeps its pid file.
type Server struct {
	dirPath string
	logger  cli.Logger
}

// NewServer creates a Server keeping its socket and pid file in dirPath.
func NewServer(dirPath string, logger cli.Logger) *Server {
	return &Server{
		dirPath: dirPath,
		logger:  logger,
	}
}

// Serve serves h on the control socket until ctx is done.
func (s *Server) Serve(ctx context.Context, h http.Handler) error {
	isRunning, pid, err := s.IsRunning()
	if err != nil {
		return err
	}
	if isRunning && pid != os.Getpid() {
		s.logger.Debugf("agent already running with pid %d", pid)
		return ErrAlreadyRunning(pid)
	}

	err = os.MkdirAll(s.dirPath, 0700)
	if err != nil {
		return errio.Error(err)
	}
	err = os.Remove(s.SocketPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove stale socket: %v", err)
	}

	listener, err := net.Listen("unix", s.SocketPath())
	if err != nil {
		return fmt.Errorf("listen: %v", err)
	}
	if err := os.Chmod(s.SocketPath(), 0600); err != nil {
		listener.Close()
		return fmt.Errorf("set socket permission: %v", err)
	}

	server := http.Server{
		Handler: h,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()

		s.logger.Debugf("stopping listener")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			s.logger.Errorf("could not close server: %s", err)
		}
	}()

	err = s.writePIDFile()
	if err != nil {
		listener.Close()
		return fmt.Errorf("cannot write pid file: %v", err)
	}
	defer func() {
		s.logger.Debugf("deleting pid file")
		if err := s.deletePIDFile(); err != nil {
			s.logger.Errorf("could not delete pid file: %s", err)
		}
	}()

	err = server.Serve(listener)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	<-stopped
	s.logger.Debugf("agent stopped")
	return nil
}

// IsRunning reports whether the process in the pid file is alive.
func (s *Server) IsRunning() (bool, int, error) {
	pidContent, err := ioutil.ReadFile(s.pidFilePath())
	if os.IsNotExist(err) {
		return false, 0, nil
	} else if err != nil {
		return false, 0, fmt.Errorf("cannot read pid file: %v", err)
	}
	pid, err := strconv.Atoi(string(bytes.TrimSpace(pidContent)))
	if err != nil {
		return false, 0, ErrPIDFileCorrupt(s.pidFilePath(), err)
	}

	psProc, err := ps.FindProcess(pid)
	if err != nil {
		return false, 0, fmt.Errorf("cannot find agent process: %v", err)
	}
	if psProc == nil {
		return false, 0, nil
	}
	return true, pid, nil
}

// Kill stops a running agent and removes what it leaves behind.
func (s *Server) Kill() error {
	running, pid, err := s.IsRunning()
	if err != nil {
		return err
	}
	if !running {
		return s.cleanup()
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("cannot find process: %v", err)
	}
	err = proc.Signal(os.Interrupt)
	if err != nil {
		return fmt.Errorf("cannot kill process: %v", err)
	}
	err = s.waitForKilled()
	if err != nil {
		return fmt.Errorf("could not determine process end: %v", err)
	}
	return nil
}

func (s *Server) cleanup() error {
	err := os.Remove(s.SocketPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove socket file: %v", err)
	}
	err = s.deletePIDFile()
	if err != nil {
		return fmt.Errorf("cannot delete pid file: %v", err)
	}
	return nil
}

func (s *Server) waitForKilled() error {
	s.logger.Debugf("waiting for agent to be stopped")
	backoffTime := time.Millisecond
	for {
		isRunning, _, err := s.IsRunning()
		if err != nil {
			return err
		}
		if !isRunning {
			return nil
		}

		if backoffTime > 10*time.Second {
			break
		}
		s.logger.Debugf("agent still running, retrying in %s", backoffTime)

		<-time.After(backoffTime)
		backoffTime *= 2
	}
	return ErrStopTimeout
}

// SocketPath returns the path of the control socket.
func (s *Server) SocketPath() string {
	return filepath.Join(s.dirPath, protocol.SocketName)
}

func (s *Server) pidFilePath() string {
	return filepath.Join(s.dirPath, protocol.PIDFileName)
}

func (s *Server) writePIDFile() error {
	return ioutil.WriteFile(s.pidFilePath(), []byte(strconv.Itoa(os.Getpid())), os.FileMode(0644))
}

func (s *Server) deletePIDFile() error {
	err := os.Remove(s.pidFilePath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
