package integration_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"

	"pkt.systems/fileclassifier"
	"pkt.systems/fileclassifier/schema"
)

func TestWebUIClassifyAndComment(t *testing.T) {
	requireLong(t)
	requireChrome(t)
	dir := t.TempDir()
	ts := startServer(t, fileclassifier.ServerConfig{
		Session: schema.SessionConfig{
			Mode:       schema.ModeFile,
			Categories: []string{"good", "bad", "review"},
			Sources: []string{
				writeFile(t, dir, "one.txt", "first file"),
				writeFile(t, dir, "two.txt", "second file"),
				writeFile(t, dir, "three.txt", "third file"),
			},
		},
	})

	ctx, cancel := newChromedpContext(t)
	defer cancel()
	if err := chromedp.Run(ctx); err != nil {
		t.Fatalf("chromedp failed to start: %v", err)
	}

	var firstContent string
	var progressAfterClassify string
	var contentAfterClassify string
	var commentText string
	var statsClassified string
	var progressAfterJump string
	err := chromedp.Run(ctx,
		chromedp.Navigate(ts.url+"/"),
		chromedp.WaitVisible(`body[data-ready="true"]`, chromedp.ByQuery),
		chromedp.Text(`#content-display`, &firstContent, chromedp.ByID),
		chromedp.KeyEvent("2"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return waitForText(ctx, "#progress", "2 / 3", 5*time.Second)
		}),
		chromedp.Text(`#progress`, &progressAfterClassify, chromedp.ByID),
		chromedp.Text(`#content-display`, &contentAfterClassify, chromedp.ByID),
		chromedp.KeyEvent("m"),
		chromedp.WaitVisible(`#comment-modal`, chromedp.ByID),
		chromedp.SetValue(`#comment-text`, "looks odd", chromedp.ByID),
		chromedp.Click(`#comment-save`, chromedp.ByID),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return waitForText(ctx, "#comment-display", "looks odd", 5*time.Second)
		}),
		chromedp.Text(`#comment-display`, &commentText, chromedp.ByID),
		chromedp.Text(`#stats-classified`, &statsClassified, chromedp.ByID),
		chromedp.KeyEvent("J"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return waitForText(ctx, "#progress", "3 / 3", 5*time.Second)
		}),
		chromedp.Text(`#progress`, &progressAfterJump, chromedp.ByID),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("chromedp timed out: %v", err)
		}
		t.Fatalf("chromedp failed: %v", err)
	}

	if firstContent != "first file" {
		t.Fatalf("unexpected first content %q", firstContent)
	}
	if progressAfterClassify != "2 / 3" || contentAfterClassify != "second file" {
		t.Fatalf("expected advance after classify, got %q %q", progressAfterClassify, contentAfterClassify)
	}
	if commentText != "looks odd" || statsClassified != "2" {
		t.Fatalf("unexpected comment state %q classified=%q", commentText, statsClassified)
	}
	if progressAfterJump != "3 / 3" {
		t.Fatalf("expected jump to next unrated, got %q", progressAfterJump)
	}

	state := ts.state(t)
	for deadline := time.Now().Add(5 * time.Second); state.CurrentIndex != 2 && time.Now().Before(deadline); {
		time.Sleep(50 * time.Millisecond)
		state = ts.state(t)
	}
	if state.CurrentIndex != 2 || len(state.Classifications) != 2 {
		t.Fatalf("unexpected server state %+v", state)
	}
	for _, entry := range state.Classifications {
		if strings.HasSuffix(entry.ItemID, "one.txt:full") && entry.CategoryName != "bad" {
			t.Fatalf("unexpected classification %+v", entry)
		}
	}
}

func newChromedpContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)
	ctx, timeoutCancel := context.WithTimeout(ctx, 30*time.Second)
	return ctx, func() {
		timeoutCancel()
		cancel()
		allocCancel()
	}
}

func waitForText(ctx context.Context, selector, needle string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var last string
	for time.Now().Before(deadline) {
		var text string
		if err := chromedp.Text(selector, &text, chromedp.ByQuery).Do(ctx); err == nil {
			last = text
			if strings.Contains(text, needle) {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for %q in %s (last=%q)", needle, selector, last)
}
