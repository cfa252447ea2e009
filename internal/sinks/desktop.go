package sinks

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultDesktopCommand returns the notification command for an OS, nil when there is none.
// {title} and {body} are substituted into every argument.
func DefaultDesktopCommand(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"osascript", "-e",
			`display notification "{body}" with title "{title}" sound name "Glass"`,
		}
	case "linux":
		return []string{"notify-send", "--urgency=critical", "{title}", "{body}"}
	}
	return nil
}

// Desktop runs a local command (osascript, notify-send, say, ...) for every notification.
// Arguments are passed to the process directly, no shell is involved.
type Desktop struct {
	argv []string
}

func NewDesktop(argv []string) Desktop {
	return Desktop{argv: argv}
}

var quoteReplacer = strings.NewReplacer(`"`, `'`, `\`, `/`)

// Args returns argv with placeholders substituted. Double quotes in the values are
// swapped for single quotes so they cannot terminate an osascript string literal.
func (d Desktop) Args(title, body string) []string {
	replacer := strings.NewReplacer(
		"{title}", quoteReplacer.Replace(title),
		"{body}", quoteReplacer.Replace(body),
	)
	out := make([]string, len(d.argv))
	for i, arg := range d.argv {
		out[i] = replacer.Replace(arg)
	}
	return out
}

func (d Desktop) Notify(ctx context.Context, title, body string) error {
	if len(d.argv) == 0 {
		return fmt.Errorf("desktop notification: no command configured")
	}
	args := d.Args(title, body)
	output, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("desktop notification: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
