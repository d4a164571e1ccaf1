// Package transfer moves files between the local tree and a remote
// root over an abstract channel. Two implementations exist: SFTP (the
// usual WordPress host) and S3 (object storage remotes).
package transfer

import (
	"context"
	"errors"
	"io/fs"
	"time"
)

// ErrNotExist reports a remote path that does not exist.
var ErrNotExist = errors.New("remote path does not exist")

// Entry is one remote file found by ListTree. RelPath is
// slash-separated and relative to the listed root.
type Entry struct {
	RelPath string
	Size    int64
	ModTime time.Time
}

// Channel is one live connection to a remote root. Implementations are
// not safe for concurrent use; the engine runs one operation per
// channel.
type Channel interface {
	// Exists reports whether the remote path exists.
	Exists(path string) (bool, error)

	// MkdirAll creates the remote directory and any missing parents.
	// Existing directories are fine.
	MkdirAll(path string) error

	// Put uploads a local file to the remote path, creating or
	// replacing it. Returns the number of bytes transferred.
	Put(ctx context.Context, localPath, remotePath string) (int64, error)

	// Get downloads a remote file to the local path, creating or
	// replacing it. Returns the number of bytes transferred.
	Get(ctx context.Context, remotePath, localPath string) (int64, error)

	// Chmod sets permission bits on a remote path.
	Chmod(path string, mode fs.FileMode) error

	// Remove deletes a remote file. Removing an absent path returns
	// ErrNotExist.
	Remove(path string) error

	// ListTree recursively lists files (never directories) under path.
	// Unreadable subdirectories are logged and skipped; a missing root
	// returns ErrNotExist.
	ListTree(ctx context.Context, path string) ([]Entry, error)

	Close() error
}

// Endpoint locates a remote root. Scheme selects the implementation;
// the S3 fields are ignored for SFTP and vice versa.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
	User   string

	// S3 only. User doubles as the access key ID.
	Bucket    string
	URL       string
	Region    string
	PathStyle bool
}

// Credentials hold the secret material for a dial. Never logged, never
// persisted. For S3 the password field carries the secret access key.
type Credentials struct {
	Password string
	KeyPEM   []byte
}

// Dialer opens a channel to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint, creds Credentials) (Channel, error)
}

// schemeDialer picks the channel implementation from the endpoint
// scheme.
type schemeDialer struct {
	sftp *SFTPDialer
	s3   *S3Dialer
}

// NewDialer returns the production dialer. knownHostsPath backs SFTP
// host-key verification.
func NewDialer(knownHostsPath string) Dialer {
	return &schemeDialer{
		sftp: &SFTPDialer{KnownHostsPath: knownHostsPath},
		s3:   &S3Dialer{},
	}
}

func (d *schemeDialer) Dial(ctx context.Context, ep Endpoint, creds Credentials) (Channel, error) {
	switch ep.Scheme {
	case "s3":
		return d.s3.Dial(ctx, ep, creds)
	default:
		return d.sftp.Dial(ctx, ep, creds)
	}
}
