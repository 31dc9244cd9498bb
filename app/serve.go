package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kilianp07/rebalance/core/model"
	coremon "github.com/kilianp07/rebalance/core/monitoring"
)

// Request is an allocation request received while serving.
type Request struct {
	// ID is echoed in the response so callers can correlate them.
	ID      string         `json:"id,omitempty"`
	Units   []model.Unit   `json:"units"`
	Targets []model.Target `json:"targets"`
	DryRun  bool           `json:"dry_run,omitempty"`
}

// Response is published for every request.
type Response struct {
	RequestID string `json:"request_id,omitempty"`
	Plan      *Plan  `json:"plan,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RequestSource delivers raw requests and accepts encoded responses.
type RequestSource interface {
	HandleRequests(h func(payload []byte)) error
	PublishResult(ctx context.Context, payload []byte) error
}

// RequestQueueSize bounds the requests waiting while another one runs.
const RequestQueueSize = 16

// ErrBusy is reported to callers whose request arrives with a full queue.
var ErrBusy = errors.New("request queue full")

// Serve answers allocation requests from src until ctx is cancelled.
// Requests are handled one at a time in arrival order. The request handler
// never blocks, so acknowledgments delivered by the same transport keep
// flowing while a request waits for them; requests beyond the queue are
// answered with ErrBusy.
func (s *Service) Serve(ctx context.Context, src RequestSource) error {
	queue := make(chan []byte, RequestQueueSize)
	if err := src.HandleRequests(func(p []byte) {
		select {
		case queue <- p:
		default:
			var req struct {
				ID string `json:"id"`
			}
			_ = json.Unmarshal(p, &req)
			s.log.Warnf("dropping request %q: %v", req.ID, ErrBusy)
			go s.reply(ctx, src, Response{RequestID: req.ID, Error: ErrBusy.Error()})
		}
	}); err != nil {
		return fmt.Errorf("subscribe requests: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-queue:
			s.reply(ctx, src, s.HandleRequest(ctx, p))
		}
	}
}

func (s *Service) reply(ctx context.Context, src RequestSource, resp Response) {
	b, err := json.Marshal(resp)
	if err != nil {
		s.log.Errorf("encode response: %v", err)
		return
	}
	if err := src.PublishResult(ctx, b); err != nil {
		s.log.Errorf("publish response: %v", err)
		coremon.CaptureException(err, map[string]string{"module": "serve", "request_id": resp.RequestID})
	}
}

// HandleRequest decodes one request payload and runs it.
func (s *Service) HandleRequest(ctx context.Context, payload []byte) Response {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Response{Error: fmt.Sprintf("decode request: %v", err)}
	}
	resp := Response{RequestID: req.ID}
	plan, err := s.Relocate(ctx, req.Units, req.Targets, Options{DryRun: req.DryRun})
	if plan.RunID != "" && (err == nil || plan.Result.Targets != nil) {
		resp.Plan = &plan
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
