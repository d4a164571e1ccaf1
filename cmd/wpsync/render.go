package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wpsync/wpsync/internal/config"
	"github.com/wpsync/wpsync/internal/sync"
)

func shortRev(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

func actionTag(a sync.Action) string {
	switch a {
	case sync.ActionUpload:
		return green.Render("upload  ")
	case sync.ActionDownload:
		return cyan.Render("download")
	case sync.ActionDelete:
		return red.Render("delete  ")
	default:
		return string(a)
	}
}

func printItems(w io.Writer, items []sync.Item) {
	for _, it := range items {
		size := ""
		if it.Size > 0 {
			size = gray.Render("  " + humanize.Bytes(uint64(it.Size)))
		}
		fmt.Fprintf(w, "  %s %s%s\n", actionTag(it.Action), it.RelPath, size)
	}
}

func printAdvisories(w io.Writer, advisories []string) {
	for _, a := range advisories {
		fmt.Fprintf(w, "%s %s\n", yellow.Render("note:"), a)
	}
}

func printStateWarning(w io.Writer, warning string) {
	if warning != "" {
		fmt.Fprintf(w, "%s %s\n", yellow.Render("warning:"), warning)
	}
}

func renderPushPreview(w io.Writer, site *config.SiteProfile, plan *sync.PushPlan, asJSON bool) error {
	if asJSON {
		return jsonEncode(w, plan)
	}

	if plan.Empty() {
		fmt.Fprintf(w, "%s nothing to push — %s is up to date at revision %s\n",
			green.Render("✓"), site.Name, shortRev(plan.Revision))
		printAdvisories(w, plan.Advisories)
		return nil
	}

	fmt.Fprintf(w, "push plan for %s %s\n", cyan.Render(site.Name),
		gray.Render(fmt.Sprintf("(revision %s)", shortRev(plan.Revision))))
	printItems(w, plan.Items)
	fmt.Fprintf(w, "%d item(s), %s\n", len(plan.Items), humanize.Bytes(uint64(plan.TotalBytes())))
	printAdvisories(w, plan.Advisories)
	return nil
}

func renderPushResult(w io.Writer, res *sync.PushResult, asJSON bool) error {
	if asJSON {
		return jsonEncode(w, res)
	}

	o := res.Outcome
	elapsed := o.FinishedAt.Sub(o.StartedAt).Round(time.Millisecond)

	switch {
	case o.Cancelled:
		fmt.Fprintf(w, "%s push aborted: %d of %d item(s) transferred (%s)\n",
			yellow.Render("✗"), o.ItemsTransferred, len(res.Plan.Items),
			humanize.Bytes(uint64(o.BytesTransferred)))
	case !o.Attempted():
		fmt.Fprintf(w, "%s nothing to push — remote already matches revision %s\n",
			green.Render("✓"), shortRev(res.Plan.Revision))
	case o.Succeeded:
		fmt.Fprintf(w, "%s push complete: %d item(s), %s in %s\n",
			green.Render("✓"), o.ItemsTransferred,
			humanize.Bytes(uint64(o.BytesTransferred)), elapsed)
	default:
		fmt.Fprintf(w, "%s push finished with failures: %d ok, %d failed\n",
			red.Render("✗"), o.ItemsTransferred, o.ItemsFailed)
		for _, f := range o.Failures {
			fmt.Fprintf(w, "  %s %s %s\n", red.Render("failed"), f.Path,
				gray.Render(fmt.Sprintf("(%s: %s)", f.Kind, f.Err)))
		}
	}

	printAdvisories(w, o.Advisories)
	printStateWarning(w, res.StateWarning)
	return nil
}

func renderPullPreview(w io.Writer, site *config.SiteProfile, plan *sync.PullPlan, asJSON bool) error {
	if asJSON {
		return jsonEncode(w, plan)
	}

	fmt.Fprintf(w, "pull plan for %s %s\n", cyan.Render(site.Name),
		gray.Render(fmt.Sprintf("(window %s)", plan.Window)))
	if len(plan.Scopes) > 0 {
		fmt.Fprintf(w, "%s %v\n", gray.Render("scopes:"), plan.Scopes)
	}

	if plan.Empty() {
		fmt.Fprintf(w, "%s nothing changed on the remote inside the window\n", green.Render("✓"))
	} else {
		printItems(w, plan.Items)
		fmt.Fprintf(w, "%d item(s), %s\n", len(plan.Items), humanize.Bytes(uint64(plan.TotalBytes())))
	}
	printAdvisories(w, plan.Advisories)
	return nil
}

func renderPullResult(w io.Writer, res *sync.PullResult, asJSON bool) error {
	if asJSON {
		return jsonEncode(w, res)
	}

	o := res.Outcome
	elapsed := o.FinishedAt.Sub(o.StartedAt).Round(time.Millisecond)

	switch {
	case o.Cancelled:
		fmt.Fprintf(w, "%s pull aborted: %d of %d item(s) downloaded (%s)\n",
			yellow.Render("✗"), o.ItemsTransferred, len(res.Plan.Items),
			humanize.Bytes(uint64(o.BytesTransferred)))
	case !o.Attempted():
		fmt.Fprintf(w, "%s nothing to pull — no remote changes inside %s\n",
			green.Render("✓"), res.Plan.Window)
	case o.Succeeded:
		fmt.Fprintf(w, "%s pull complete: %d item(s), %s in %s\n",
			green.Render("✓"), o.ItemsTransferred,
			humanize.Bytes(uint64(o.BytesTransferred)), elapsed)
	default:
		fmt.Fprintf(w, "%s pull finished with failures: %d ok, %d failed\n",
			red.Render("✗"), o.ItemsTransferred, o.ItemsFailed)
		for _, f := range o.Failures {
			fmt.Fprintf(w, "  %s %s %s\n", red.Render("failed"), f.Path,
				gray.Render(fmt.Sprintf("(%s: %s)", f.Kind, f.Err)))
		}
	}

	printAdvisories(w, o.Advisories)
	printStateWarning(w, res.StateWarning)
	return nil
}
