package export

import (
	"context"

	"github.com/charmbracelet/log"

	apperrors "github.com/matzehuels/mapexport/pkg/errors"
)

// Feedback is how the exporter talks to the user while it runs.
type Feedback interface {
	// ShowLoading displays a blocking progress indicator.
	ShowLoading(ctx context.Context, msg string)
	// HideLoading removes the indicator. It is called on every exit path.
	HideLoading(ctx context.Context)
	// Alert reports a failed export. It is called at most once per export.
	Alert(ctx context.Context, err error)
}

// NopFeedback ignores all feedback.
type NopFeedback struct{}

func (NopFeedback) ShowLoading(context.Context, string) {}
func (NopFeedback) HideLoading(context.Context)         {}
func (NopFeedback) Alert(context.Context, error)        {}

// LogFeedback reports through a logger, for headless use.
type LogFeedback struct {
	Logger *log.Logger
}

func (f LogFeedback) ShowLoading(_ context.Context, msg string) {
	if f.Logger != nil {
		f.Logger.Debug(msg)
	}
}

func (f LogFeedback) HideLoading(context.Context) {}

func (f LogFeedback) Alert(_ context.Context, err error) {
	if f.Logger != nil {
		f.Logger.Error("export failed", "code", apperrors.GetCode(AsAppError(err)), "error", err)
	}
}
