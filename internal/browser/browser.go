// Package browser opens URLs in the desktop's default browser.
package browser

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"pkt.systems/pslog"
)

// Command returns the program and arguments used to open url on goos.
func Command(goos, url string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{url}, nil
	default:
		return "", nil, fmt.Errorf("no browser launcher for %s", goos)
	}
}

// Open launches the default browser without waiting for it to exit.
func Open(ctx context.Context, url string) error {
	name, args, err := Command(runtime.GOOS, url)
	if err != nil {
		return err
	}
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	pslog.Ctx(ctx).Debug("browser launched", "cmd", name, "pid", cmd.Process.Pid)
	go func() { _ = cmd.Wait() }()
	return nil
}
