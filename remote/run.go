package remote

import (
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// TerminalSize returns the current terminal dimensions, with a sane fallback
// when stdout is not a terminal.
func TerminalSize() (width, height int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return 80, 24
	}
	return w, h
}

// Run opens the session and hands the local terminal over to it, blocking
// until the remote command exits. The local terminal is switched to raw mode
// for the duration so interactive programs behave.
func Run(s Session, logger zerolog.Logger) error {
	keyBytes, err := os.ReadFile(s.KeyPath)
	if err != nil {
		return fmt.Errorf("read key %s: %w", s.KeyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return fmt.Errorf("parse key %s: %w", s.KeyPath, err)
	}

	cfg, err := s.clientConfig(signer)
	if err != nil {
		return err
	}

	var client *ssh.Client
	dial := func() error {
		client, err = ssh.Dial("tcp", s.Addr, cfg)
		return err
	}
	if err := backoff.Retry(dial, backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), 4)); err != nil {
		return fmt.Errorf("connect to %s: %w", s.Addr, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("open session on %s: %w", s.Addr, err)
	}
	defer session.Close()

	session.Stdin = os.Stdin
	session.Stdout = os.Stdout
	session.Stderr = os.Stderr

	fd := int(os.Stdin.Fd())
	width, height := TerminalSize()
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("set raw terminal: %w", err)
		}
		defer term.Restore(fd, oldState)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm-256color", height, width, modes); err != nil {
		return fmt.Errorf("request pty: %w", err)
	}

	// Keepalives stop idle interactive sessions from being dropped by
	// intermediate NAT timeouts.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(s.Keepalive)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
				if err != nil {
					logger.Debug().Err(err).Msg("keepalive failed")
					return
				}
			}
		}
	}()

	logger.Debug().Str("session", s.String()).Msg("starting remote session")
	return session.Run(s.Command)
}
