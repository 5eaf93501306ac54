package infra

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

const (
	surfaceTitle  = "Focus mode"
	labelGoBack   = "Go back"
	labelEndFocus = "End focus"
)

// DialogSurface shows the interception screen as a native modal dialog.
// darwin uses osascript, everything else zenity.
type DialogSurface struct {
	runner CommandRunner
	goos   string
}

// NewDialogSurface creates a dialog surface for the running OS.
func NewDialogSurface() *DialogSurface {
	return &DialogSurface{runner: &RealCommandRunner{}, goos: runtime.GOOS}
}

// NewDialogSurfaceWithDeps creates a surface with injectable dependencies (for testing).
func NewDialogSurfaceWithDeps(runner CommandRunner, goos string) *DialogSurface {
	return &DialogSurface{runner: runner, goos: goos}
}

// Present blocks until the dialog is answered or goes away.
// The dialog has no timeout; ctx cancellation kills it and counts as teardown.
func (s *DialogSurface) Present(ctx context.Context, appID string) (domain.Outcome, error) {
	text := "Blocked: " + appID

	var out []byte
	var err error
	if s.goos == "darwin" {
		script := fmt.Sprintf(`display dialog "%s" with title "%s" buttons {"%s", "%s"} default button "%s"`,
			appleScriptEscape(text), surfaceTitle, labelEndFocus, labelGoBack, labelGoBack)
		out, err = s.runner.Output(ctx, "osascript", "-e", script)
	} else {
		out, err = s.runner.Output(ctx, "zenity", "--question", "--switch",
			"--title", surfaceTitle, "--text", text,
			"--extra-button", labelGoBack, "--extra-button", labelEndFocus)
		// zenity exits 1 when an extra button is pressed; the label is on stdout
		if err != nil && exitCode(err) == 1 && len(strings.TrimSpace(string(out))) > 0 {
			err = nil
		}
	}
	if err != nil {
		return domain.OutcomeTeardown, fmt.Errorf("interception dialog closed: %w", err)
	}
	return parseDialogAnswer(string(out)), nil
}

// parseDialogAnswer maps dialog output to an outcome; anything else is teardown.
func parseDialogAnswer(out string) domain.Outcome {
	answer := strings.TrimSpace(out)
	answer = strings.TrimPrefix(answer, "button returned:")
	switch answer {
	case labelGoBack:
		return domain.OutcomeGoBack
	case labelEndFocus:
		return domain.OutcomeEndFocus
	default:
		return domain.OutcomeTeardown
	}
}

func appleScriptEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Ensure DialogSurface implements domain.InterceptionSurface.
var _ domain.InterceptionSurface = (*DialogSurface)(nil)
