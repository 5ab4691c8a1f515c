package chat

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Result is one framed answer.
type Result struct {
	// ID correlates the exchange in logs.
	ID string

	// Raw is everything the program printed after the prompt was written.
	Raw string

	// Text is Raw after Sanitize.
	Text string

	Reason   CompletionReason
	Duration time.Duration
}

// Prompt sends one prompt and returns the sanitized answer.
// An answer that sanitizes to nothing is reported as ErrEmptyResponse.
func (s *Session) Prompt(ctx context.Context, prompt string) (string, error) {
	res, err := s.Exchange(ctx, prompt)
	if err != nil {
		return "", err
	}

	if res.Text == "" {
		return "", fmt.Errorf("%w (exchange %s, %d raw bytes)", ErrEmptyResponse, res.ID, len(res.Raw))
	}

	return res.Text, nil
}

// Exchange writes prompt followed by a newline and reconstructs one answer from
// the output stream.
//
// Every chunk re-arms the quiescence window. Under PolicyMarker a chunk holding
// the marker ends the exchange at once. The window also runs from the moment the
// prompt is written, so a silent program yields an empty result.
//
// After a failed exchange the program's state is unknown; callers recover with
// Close and Open.
func (s *Session) Exchange(ctx context.Context, prompt string) (*Result, error) {
	h := s.live.Load()
	if h == nil || s.State() != StateOpen {
		return nil, ErrNotInitialized
	}

	if !h.busy.CompareAndSwap(false, true) {
		return nil, ErrExchangeInFlight
	}
	defer h.busy.Store(false)

	ex := &exchange{
		id:     ulid.Make().String(),
		policy: s.opts.Policy,
		window: s.opts.Quiescence,
	}
	log := s.log.With("exchange", ex.id)

	log.Debug("Sending prompt", "bytes", len(prompt), "policy", ex.policy, "window", ex.window)

	res, err := ex.run(ctx, h, prompt)
	if err != nil {
		s.opts.Metrics.exchangeFailed(err)
		log.Error("Exchange failed", "error", err)
		return nil, err
	}

	s.opts.Metrics.exchangeDone(res)
	log.Debug("Exchange completed", "reason", res.Reason, "raw_bytes", len(res.Raw), "duration", res.Duration)

	return res, nil
}

// exchange is the state of one pending prompt.
type exchange struct {
	id     string
	policy CompletionPolicy
	window time.Duration
	buf    strings.Builder
}

func (ex *exchange) run(ctx context.Context, h *handle, prompt string) (*Result, error) {
	h.discardIdleOutput()

	if h.stopping() {
		return nil, ErrSessionClosed
	}

	start := time.Now()
	if _, err := io.WriteString(h.proc.Stdin(), prompt+"\n"); err != nil {
		if h.stopping() {
			return nil, ErrSessionClosed
		}
		return nil, &StreamError{Err: fmt.Errorf("write prompt: %w", err)}
	}

	timer := time.NewTimer(ex.window)
	defer timer.Stop()

	for {
		select {
		case chunk, ok := <-h.chunks:
			if !ok {
				if h.stopping() {
					return nil, ErrSessionClosed
				}
				return nil, h.awaitTerminal(ctx)
			}

			ex.buf.WriteString(chunk)

			if ex.policy == PolicyMarker && strings.Contains(chunk, Marker) {
				return ex.result(ReasonMarker, start), nil
			}

			timer.Reset(ex.window)

		case <-timer.C:
			return ex.result(ReasonQuiescence, start), nil

		case <-h.quit:
			return nil, ErrSessionClosed

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (ex *exchange) result(reason CompletionReason, start time.Time) *Result {
	raw := ex.buf.String()

	return &Result{
		ID:       ex.id,
		Raw:      raw,
		Text:     Sanitize(raw),
		Reason:   reason,
		Duration: time.Since(start),
	}
}

// discardIdleOutput drops chunks that arrived while no exchange was pending.
func (h *handle) discardIdleOutput() {
	for {
		select {
		case _, ok := <-h.chunks:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
