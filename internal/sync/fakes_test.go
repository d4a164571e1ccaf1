package sync

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	stdsync "sync"
	"time"

	"github.com/wpsync/wpsync/internal/secrets"
	"github.com/wpsync/wpsync/internal/state"
	"github.com/wpsync/wpsync/internal/transfer"
)

// fakeChannel is an in-memory transfer.Channel. Remote files live in a
// map keyed by full remote path; error injection is per path.
type fakeChannel struct {
	mu       stdsync.Mutex
	files    map[string][]byte
	modTimes map[string]time.Time
	dirs     map[string]bool
	perms    map[string]fs.FileMode

	putErr   map[string]error
	getErr   map[string]error
	listErr  map[string]error
	chmodErr error

	puts    []string
	removes []string
	closed  bool

	// onPut runs after each successful Put, with the count of puts so
	// far. Used to cancel a context mid-plan.
	onPut func(puts int)
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		files:    make(map[string][]byte),
		modTimes: make(map[string]time.Time),
		dirs:     make(map[string]bool),
		perms:    make(map[string]fs.FileMode),
		putErr:   make(map[string]error),
		getErr:   make(map[string]error),
		listErr:  make(map[string]error),
	}
}

func (c *fakeChannel) addFile(remote string, content string, modTime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[remote] = []byte(content)
	c.modTimes[remote] = modTime
}

func (c *fakeChannel) Exists(remotePath string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.files[remotePath]; ok {
		return true, nil
	}
	return c.dirs[remotePath], nil
}

func (c *fakeChannel) MkdirAll(remotePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirs[remotePath] = true
	return nil
}

func (c *fakeChannel) Put(ctx context.Context, localPath, remotePath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	injected := c.putErr[remotePath]
	c.mu.Unlock()
	if injected != nil {
		return 0, injected
	}

	content, err := os.ReadFile(localPath)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.files[remotePath] = content
	c.modTimes[remotePath] = time.Now()
	c.puts = append(c.puts, remotePath)
	n := len(c.puts)
	hook := c.onPut
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return int64(len(content)), nil
}

func (c *fakeChannel) Get(ctx context.Context, remotePath, localPath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	injected := c.getErr[remotePath]
	content, ok := c.files[remotePath]
	c.mu.Unlock()

	if injected != nil {
		return 0, injected
	}
	if !ok {
		return 0, fmt.Errorf("%s: %w", remotePath, transfer.ErrNotExist)
	}
	if err := os.WriteFile(localPath, content, 0o644); err != nil {
		return 0, err
	}
	return int64(len(content)), nil
}

func (c *fakeChannel) Chmod(remotePath string, mode fs.FileMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chmodErr != nil {
		return c.chmodErr
	}
	c.perms[remotePath] = mode
	return nil
}

func (c *fakeChannel) Remove(remotePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.files[remotePath]; !ok {
		return fmt.Errorf("%s: %w", remotePath, transfer.ErrNotExist)
	}
	delete(c.files, remotePath)
	c.removes = append(c.removes, remotePath)
	return nil
}

func (c *fakeChannel) ListTree(ctx context.Context, remotePath string) ([]transfer.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.listErr[remotePath]; err != nil {
		return nil, err
	}

	prefix := strings.TrimSuffix(remotePath, "/") + "/"
	var entries []transfer.Entry
	for p, content := range c.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		entries = append(entries, transfer.Entry{
			RelPath: strings.TrimPrefix(p, prefix),
			Size:    int64(len(content)),
			ModTime: c.modTimes[p],
		})
	}
	if len(entries) == 0 && !c.dirs[remotePath] {
		return nil, fmt.Errorf("%s: %w", remotePath, transfer.ErrNotExist)
	}
	return entries, nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// fakeDialer hands out one channel and counts dials.
type fakeDialer struct {
	ch    *fakeChannel
	err   error
	dials int
}

func (d *fakeDialer) Dial(ctx context.Context, ep transfer.Endpoint, creds transfer.Credentials) (transfer.Channel, error) {
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	return d.ch, nil
}

// fakeStore is an in-memory StateStore with failure injection.
type fakeStore struct {
	push map[string]*state.PushRecord
	pull map[string]*state.PullRecord

	failRead bool
	failSave bool

	pushReads int
	pullSaves int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		push: make(map[string]*state.PushRecord),
		pull: make(map[string]*state.PullRecord),
	}
}

func (s *fakeStore) PushRecord(siteID string) (*state.PushRecord, error) {
	s.pushReads++
	if s.failRead {
		return nil, fmt.Errorf("state database unavailable")
	}
	return s.push[siteID], nil
}

func (s *fakeStore) SavePushRecord(rec *state.PushRecord) error {
	if s.failSave {
		return fmt.Errorf("state database unavailable")
	}
	s.push[rec.SiteID] = rec
	return nil
}

func (s *fakeStore) SavePullRecord(rec *state.PullRecord) error {
	s.pullSaves++
	if s.failSave {
		return fmt.Errorf("state database unavailable")
	}
	s.pull[rec.SiteID] = rec
	return nil
}

// stubSecrets resolves a fixed password and nothing else.
type stubSecrets struct {
	password string
}

func (s stubSecrets) Resolve(site string, kind secrets.Kind) (string, error) {
	if kind == secrets.KindPassword && s.password != "" {
		return s.password, nil
	}
	return "", secrets.ErrNotFound
}

// writeLocalFiles materializes files under root, creating parents.
func writeLocalFiles(root string, files map[string]string) error {
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}
