package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/fileclassifier"

// buildVersion is set via -ldflags "-X pkt.systems/fileclassifier/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running binary.
type Info struct {
	Module   string
	Version  string
	Revision string
	Time     time.Time
	Dirty    bool
}

// String renders the info the way the version command prints it.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", i.Module, i.Version)
	if i.Revision != "" {
		fmt.Fprintf(&b, " (%s", shortRevision(i.Revision))
		if !i.Time.IsZero() {
			fmt.Fprintf(&b, " %s", i.Time.UTC().Format(time.RFC3339))
		}
		if i.Dirty {
			b.WriteString(" dirty")
		}
		b.WriteString(")")
	}
	return b.String()
}

// Read collects version details from the linker flag and the build info.
func Read() Info {
	info, _ := debug.ReadBuildInfo()
	return fromBuildInfo(info, buildVersion)
}

// Current returns the best available version string.
func Current() string {
	return Read().Version
}

func fromBuildInfo(info *debug.BuildInfo, override string) Info {
	out := Info{Module: defaultModule}
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			out.Module = path
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				out.Revision = setting.Value
			case "vcs.time":
				if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					out.Time = parsed
				}
			case "vcs.modified":
				out.Dirty = setting.Value == "true"
			}
		}
	}
	switch {
	case strings.TrimSpace(override) != "":
		out.Version = strings.TrimSuffix(strings.TrimSpace(override), "+dirty")
	case info != nil && info.Main.Version != "" && info.Main.Version != "(devel)":
		out.Version = strings.TrimSuffix(info.Main.Version, "+dirty")
	case out.Revision != "" && !out.Time.IsZero():
		out.Version = "v0.0.0-" + out.Time.UTC().Format("20060102150405") + "-" + shortRevision(out.Revision)
	default:
		out.Version = "v0.0.0-unknown"
	}
	return out
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
