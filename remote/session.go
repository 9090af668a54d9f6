// Package remote builds and runs interactive SSH sessions into containers on
// cluster hosts.
package remote

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultUser is the login user on ECS-optimized hosts.
const DefaultUser = "ec2-user"

// DefaultShell is exec'd in the container when no command is requested.
const DefaultShell = "/bin/bash"

// Session describes a fully resolved remote session: where to connect, how
// to authenticate, and what to run once connected. Building one performs no
// network I/O.
type Session struct {
	Addr       string // host:port
	User       string
	KeyPath    string
	Command    string // remote command line, typically a docker exec
	Keepalive  time.Duration
	VerifyHost bool   // verify the host key against KnownHosts
	KnownHosts string // path to a known_hosts file, used when VerifyHost is set
}

// Builder assembles sessions from resolved target data.
type Builder struct {
	User       string
	Port       int
	Keepalive  time.Duration
	VerifyHost bool
	KnownHosts string
}

// Build composes the docker exec command line for a container and wraps it
// in a session targeting the container's host.
//
// The terminal dimensions are propagated as COLUMNS and LINES environment
// variables so full-screen programs render correctly inside the container.
func (b Builder) Build(host, keyPath, containerID, command string, width, height int) Session {
	user := b.User
	if user == "" {
		user = DefaultUser
	}
	port := b.Port
	if port == 0 {
		port = 22
	}
	keepalive := b.Keepalive
	if keepalive == 0 {
		keepalive = 30 * time.Second
	}

	return Session{
		Addr:       net.JoinHostPort(host, strconv.Itoa(port)),
		User:       user,
		KeyPath:    keyPath,
		Command:    ExecCommand(containerID, command, width, height),
		Keepalive:  keepalive,
		VerifyHost: b.VerifyHost,
		KnownHosts: b.KnownHosts,
	}
}

// ExecCommand builds the in-container command line: a docker exec with a
// TTY, the terminal size exported, and the requested command (or a login
// shell).
func ExecCommand(containerID, command string, width, height int) string {
	if command == "" {
		command = DefaultShell
	}
	return fmt.Sprintf("docker exec -it -e COLUMNS=%d -e LINES=%d %s %s",
		width, height, containerID, command)
}

// clientConfig builds the SSH client configuration for a session. Host key
// verification is disabled by default: cluster hosts are ephemeral and their
// keys churn with every scale event. Setting VerifyHost restores known_hosts
// checking.
func (s Session) clientConfig(signer ssh.Signer) (*ssh.ClientConfig, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if s.VerifyHost {
		cb, err := knownhosts.New(s.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("load known hosts %s: %w", s.KnownHosts, err)
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            s.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         10 * time.Second,
	}, nil
}

// String renders the session for logging without key material.
func (s Session) String() string {
	var sb strings.Builder
	sb.WriteString(s.User)
	sb.WriteString("@")
	sb.WriteString(s.Addr)
	sb.WriteString(" ")
	sb.WriteString(s.Command)
	return sb.String()
}
