package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	apperrors "github.com/matzehuels/mapexport/pkg/errors"
	"github.com/matzehuels/mapexport/pkg/export"
)

// Spinner provides a simple progress indicator with context cancellation support.
type Spinner struct {
	message string
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped chan struct{}
	frames  []string
	mu      sync.Mutex
	started bool
}

func newSpinner(message string) *Spinner {
	return newSpinnerWithContext(context.Background(), message)
}

// newSpinnerWithContext creates a spinner that will stop when the context is cancelled.
func newSpinnerWithContext(ctx context.Context, message string) *Spinner {
	spinnerCtx, cancel := context.WithCancel(ctx)
	return &Spinner{
		message: message,
		ctx:     spinnerCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	}
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		i := 0
		for {
			select {
			case <-s.ctx.Done():
				s.clearLine()
				return
			case <-s.done:
				return
			case <-ticker.C:
				frame := s.frames[i%len(s.frames)]
				s.mu.Lock()
				fmt.Fprintf(os.Stderr, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.message))
				s.mu.Unlock()
				i++
			}
		}
	}()
}

// Stop stops the spinner and clears the line. It is safe to call more
// than once, and on a spinner that was never started.
func (s *Spinner) Stop() {
	s.cancel()
	s.mu.Lock()
	started := s.started
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.mu.Unlock()
	if !started {
		return
	}
	<-s.stopped
	s.clearLine()
}

func (s *Spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
}

// StopWithSuccess stops the spinner and shows a success message.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	printSuccess("%s", message)
}

// StopWithError stops the spinner and shows an error message.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	printError("%s", message)
}

// Cancelled returns true if the spinner's parent context ended.
func (s *Spinner) Cancelled() bool {
	select {
	case <-s.done:
		return false
	default:
		return s.ctx.Err() != nil
	}
}

// spinnerFeedback shows the exporter's loading indicator as a spinner and
// its alerts as error lines.
type spinnerFeedback struct {
	mu      sync.Mutex
	spinner *Spinner
	alerted int
}

var _ export.Feedback = (*spinnerFeedback)(nil)

func (f *spinnerFeedback) ShowLoading(ctx context.Context, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.spinner != nil {
		f.spinner.Stop()
	}
	f.spinner = newSpinnerWithContext(ctx, msg)
	f.spinner.Start()
}

func (f *spinnerFeedback) HideLoading(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.spinner != nil {
		f.spinner.Stop()
		f.spinner = nil
	}
}

func (f *spinnerFeedback) Alert(_ context.Context, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.spinner != nil {
		f.spinner.Stop()
		f.spinner = nil
	}
	f.alerted++
	printError("%s", apperrors.UserMessage(export.AsAppError(err)))
}

// Alerted reports whether the user has already been shown an error.
func (f *spinnerFeedback) Alerted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alerted > 0
}
