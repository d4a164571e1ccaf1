package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/wpsync/wpsync/internal/utils"
)

const (
	defaultDialTimeout = 15 * time.Second

	// ensuredDirCap bounds the per-session cache of directories already
	// confirmed to exist.
	ensuredDirCap = 512
)

// SFTPDialer opens SFTP channels over SSH. Host keys are verified
// against KnownHostsPath with accept-new semantics: unknown hosts are
// recorded and accepted, changed keys are rejected.
type SFTPDialer struct {
	KnownHostsPath string
	Timeout        time.Duration
}

func (d *SFTPDialer) Dial(ctx context.Context, ep Endpoint, creds Credentials) (Channel, error) {
	var auth []ssh.AuthMethod
	if len(creds.KeyPEM) > 0 {
		signer, err := ssh.ParsePrivateKey(creds.KeyPEM)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if creds.Password != "" {
		auth = append(auth, ssh.Password(creds.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("no credentials: set a password or key file for this site")
	}

	hostKeyCallback, err := acceptNewHostKey(d.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("host key setup: %w", err)
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	cfg := &ssh.ClientConfig{
		User:            ep.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))
	netDialer := net.Dialer{Timeout: timeout}
	conn, err := netDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("open sftp subsystem: %w", err)
	}

	ensured, _ := lru.New[string, struct{}](ensuredDirCap)
	slog.Debug("sftp connected", "addr", addr, "user", ep.User)

	return &SFTPChannel{
		ssh:     sshClient,
		sftp:    sftpClient,
		ensured: ensured,
	}, nil
}

// SFTPChannel implements Channel over an SSH connection.
type SFTPChannel struct {
	ssh     *ssh.Client
	sftp    *sftp.Client
	ensured *lru.Cache[string, struct{}]
}

// Runner returns a command runner sharing this channel's SSH
// connection. Used by the database workflow.
func (c *SFTPChannel) Runner() *SSHRunner {
	return &SSHRunner{client: c.ssh}
}

func (c *SFTPChannel) Exists(p string) (bool, error) {
	_, err := c.sftp.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", p, err)
}

// MkdirAll walks from the root down, creating each missing segment.
// Directories already seen this session are skipped via the LRU.
func (c *SFTPChannel) MkdirAll(p string) error {
	for _, dir := range ancestorChain(p) {
		if _, ok := c.ensured.Get(dir); ok {
			continue
		}

		_, err := c.sftp.Stat(dir)
		if err == nil {
			c.ensured.Add(dir, struct{}{})
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", dir, err)
		}

		if err := c.sftp.Mkdir(dir); err != nil {
			// Lost a race with another writer, or the stat lied.
			if _, statErr := c.sftp.Stat(dir); statErr != nil {
				return fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
		c.ensured.Add(dir, struct{}{})
	}
	return nil
}

func (c *SFTPChannel) Put(ctx context.Context, localPath, remotePath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	dst, err := c.sftp.Create(remotePath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", remotePath, err)
	}

	n, err := dst.ReadFrom(src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, fmt.Errorf("upload %s: %w", remotePath, err)
	}
	return n, nil
}

func (c *SFTPChannel) Get(ctx context.Context, remotePath, localPath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	src, err := c.sftp.Open(remotePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNotExist, remotePath)
		}
		return 0, fmt.Errorf("open %s: %w", remotePath, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", localPath, err)
	}

	n, err := src.WriteTo(dst)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, fmt.Errorf("download %s: %w", remotePath, err)
	}
	return n, nil
}

func (c *SFTPChannel) Chmod(p string, mode fs.FileMode) error {
	return c.sftp.Chmod(p, mode)
}

func (c *SFTPChannel) Remove(p string) error {
	err := c.sftp.Remove(p)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotExist, p)
	}
	return err
}

func (c *SFTPChannel) ListTree(ctx context.Context, root string) ([]Entry, error) {
	if _, err := c.sftp.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, root)
		}
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	var entries []Entry
	pending := []string{""}

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return entries, err
		}

		rel := pending[0]
		pending = pending[1:]

		infos, err := c.sftp.ReadDir(path.Join(root, rel))
		if err != nil {
			// One unreadable directory should not sink the whole listing.
			slog.Warn("skipping unreadable remote directory", "path", path.Join(root, rel), "error", err)
			continue
		}

		for _, info := range infos {
			entryRel := path.Join(rel, info.Name())
			switch {
			case info.IsDir():
				pending = append(pending, entryRel)
			case info.Mode().IsRegular():
				entries = append(entries, Entry{
					RelPath: entryRel,
					Size:    info.Size(),
					ModTime: info.ModTime(),
				})
			}
		}
	}

	return entries, nil
}

func (c *SFTPChannel) Close() error {
	sftpErr := c.sftp.Close()
	sshErr := c.ssh.Close()
	if sftpErr != nil {
		return sftpErr
	}
	return sshErr
}

// ancestorChain expands "/a/b/c" into ["/a", "/a/b", "/a/b/c"].
func ancestorChain(p string) []string {
	p = path.Clean(p)
	if p == "/" || p == "." {
		return nil
	}

	absolute := strings.HasPrefix(p, "/")
	parts := strings.Split(strings.Trim(p, "/"), "/")

	chain := make([]string, 0, len(parts))
	cur := ""
	for _, part := range parts {
		if cur == "" && absolute {
			cur = "/" + part
		} else if cur == "" {
			cur = part
		} else {
			cur = cur + "/" + part
		}
		chain = append(chain, cur)
	}
	return chain
}

// acceptNewHostKey verifies hosts against the known_hosts file at
// hostsPath, appending keys for hosts never seen before. A changed key
// for a known host is rejected.
func acceptNewHostKey(hostsPath string) (ssh.HostKeyCallback, error) {
	if hostsPath == "" {
		return nil, errors.New("known hosts path not configured")
	}

	if err := utils.EnsureParent(hostsPath); err != nil {
		return nil, err
	}
	if !utils.FileExists(hostsPath) {
		if err := os.WriteFile(hostsPath, nil, 0o600); err != nil {
			return nil, err
		}
	}

	verify, err := knownhosts.New(hostsPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", hostsPath, err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := verify(hostname, remote, key)
		if err == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if errors.As(err, &keyErr) && len(keyErr.Want) == 0 {
			return recordHostKey(hostsPath, hostname, key)
		}
		return err
	}, nil
}

func recordHostKey(hostsPath, hostname string, key ssh.PublicKey) error {
	f, err := os.OpenFile(hostsPath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("record host key: %w", err)
	}
	defer f.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	if _, err := fmt.Fprintln(f, line); err != nil {
		return fmt.Errorf("record host key: %w", err)
	}

	slog.Info("recorded new host key", "host", hostname, "fingerprint", ssh.FingerprintSHA256(key))
	return nil
}
