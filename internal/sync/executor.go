package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/wpsync/wpsync/internal/transfer"
)

// Executor walks a plan item by item against one channel. Items run
// strictly sequentially; a failed item is recorded and the plan
// continues. Cancellation is honored between items only, never
// mid-item, so no file is left half-written with ambiguous state.
type Executor struct {
	LocalRoot  string
	RemoteRoot string
}

// Execute runs the plan. It always returns an outcome — per-item
// errors accumulate instead of aborting. An empty plan yields a
// trivially succeeded outcome with zero counts.
func (e *Executor) Execute(ctx context.Context, plan *Plan, ch transfer.Channel, progress ProgressFunc) *Outcome {
	out := &Outcome{
		StartedAt:  time.Now().UTC(),
		Advisories: append([]string(nil), plan.Advisories...),
	}

	total := len(plan.Items)
	chmodFailures := 0

	for done := 0; done < total; {
		if ctx.Err() != nil {
			out.Cancelled = true
			break
		}

		item := plan.Items[done]
		n, err := e.apply(ctx, ch, item, &chmodFailures)
		done++

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				out.Cancelled = true
				break
			}
			kind := classifyFailure(err)
			out.ItemsFailed++
			out.Failures = append(out.Failures, ItemFailure{
				Path: item.RelPath,
				Kind: kind,
				Err:  err.Error(),
			})
			slog.Warn("item failed", "path", item.RelPath, "action", item.Action, "kind", kind, "error", err)
			progress.emit(done, total, fmt.Sprintf("failed %s", item.RelPath))
			continue
		}

		out.ItemsTransferred++
		out.BytesTransferred += n
		progress.emit(done, total, fmt.Sprintf("%s %s", pastTense(item.Action), item.RelPath))
	}

	if chmodFailures > 0 {
		out.Advisories = append(out.Advisories,
			fmt.Sprintf("permissions could not be applied to %d file(s); the server refused chmod", chmodFailures))
	}

	out.FinishedAt = time.Now().UTC()
	out.Succeeded = !out.Cancelled && out.ItemsFailed == 0
	return out
}

func (e *Executor) apply(ctx context.Context, ch transfer.Channel, item Item, chmodFailures *int) (int64, error) {
	switch item.Action {
	case ActionUpload:
		return e.upload(ctx, ch, item, chmodFailures)
	case ActionDownload:
		return e.download(ctx, ch, item)
	case ActionDelete:
		return 0, e.remove(ch, item)
	default:
		return 0, fmt.Errorf("unknown plan action %q", item.Action)
	}
}

func (e *Executor) upload(ctx context.Context, ch transfer.Channel, item Item, chmodFailures *int) (int64, error) {
	local := filepath.Join(e.LocalRoot, filepath.FromSlash(item.RelPath))
	remote := e.remotePath(item.RelPath)

	info, err := os.Stat(local)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%s: %w", local, fs.ErrNotExist)
		}
		return 0, err
	}

	if dir := path.Dir(remote); dir != "." && dir != "/" {
		if err := ch.MkdirAll(dir); err != nil {
			return 0, err
		}
	}

	n, err := ch.Put(ctx, local, remote)
	if err != nil {
		return 0, err
	}

	// Permission preservation must not fail silently, but a server that
	// refuses chmod should not fail the item either.
	if err := ch.Chmod(remote, info.Mode().Perm()); err != nil {
		*chmodFailures++
		slog.Warn("chmod failed", "path", item.RelPath, "mode", info.Mode().Perm(), "error", err)
	}

	return n, nil
}

func (e *Executor) download(ctx context.Context, ch transfer.Channel, item Item) (int64, error) {
	local := filepath.Join(e.LocalRoot, filepath.FromSlash(item.RelPath))
	remote := e.remotePath(item.RelPath)

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return 0, err
	}

	// Overwrite-wins: an existing local file is replaced without
	// prompting. Conflict handling is declared out of scope.
	return ch.Get(ctx, remote, local)
}

// remove propagates a deletion. A file already absent remotely counts
// as success; the goal state is "not there".
func (e *Executor) remove(ch transfer.Channel, item Item) error {
	err := ch.Remove(e.remotePath(item.RelPath))
	if err != nil && errors.Is(err, transfer.ErrNotExist) {
		return nil
	}
	return err
}

func (e *Executor) remotePath(relPath string) string {
	if e.RemoteRoot == "" {
		return relPath
	}
	return path.Join(e.RemoteRoot, relPath)
}

// classifyFailure maps an item error onto the failure taxonomy.
func classifyFailure(err error) FailureKind {
	switch {
	case errors.Is(err, transfer.ErrNotExist), errors.Is(err, fs.ErrNotExist):
		return FailureVanished
	case errors.Is(err, fs.ErrPermission):
		return FailurePermission
	case isChannelError(err):
		return FailureChannel
	default:
		return FailureIO
	}
}

func isChannelError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}

func pastTense(a Action) string {
	switch a {
	case ActionUpload:
		return "uploaded"
	case ActionDownload:
		return "downloaded"
	case ActionDelete:
		return "deleted"
	default:
		return string(a)
	}
}
