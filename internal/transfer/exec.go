package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Runner executes shell commands on a remote host.
type Runner interface {
	Run(ctx context.Context, cmd string) (stdout string, stderr string, err error)
}

// SSHRunner runs commands over an established SSH connection, one
// session per command.
type SSHRunner struct {
	client *ssh.Client
}

func (r *SSHRunner) Run(ctx context.Context, cmd string) (string, string, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		// Closing the session tears the command down server-side.
		session.Close()
		<-done
		return stdout.String(), stderr.String(), ctx.Err()
	case err := <-done:
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				return stdout.String(), stderr.String(),
					fmt.Errorf("remote command exited %d: %s", exitErr.ExitStatus(), firstLine(stderr.String()))
			}
			return stdout.String(), stderr.String(), fmt.Errorf("remote command: %w", err)
		}
		return stdout.String(), stderr.String(), nil
	}
}

// TestConnection round-trips an echo through the remote shell.
func (r *SSHRunner) TestConnection(ctx context.Context) error {
	out, _, err := r.Run(ctx, "echo wpsync-ok")
	if err != nil {
		return err
	}
	if !strings.Contains(out, "wpsync-ok") {
		return fmt.Errorf("unexpected echo output: %q", firstLine(out))
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
