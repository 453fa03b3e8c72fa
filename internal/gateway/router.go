package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/llmhub/llmhub/internal/domain"
	"github.com/llmhub/llmhub/internal/logger"
	"github.com/llmhub/llmhub/internal/utils"
)

// Router forwards tool calls to the service that exposes them. When a
// call names no service the first healthy match wins.
type Router struct {
	registry *ServiceRegistry
	client   *http.Client
	log      logger.Logger
	timeout  time.Duration
}

func NewRouter(registry *ServiceRegistry, timeout time.Duration, log logger.Logger) *Router {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Router{
		registry: registry,
		client:   &http.Client{Timeout: timeout},
		log:      log,
		timeout:  timeout,
	}
}

// Route resolves the target service and forwards the call. Failures
// are returned as structured results, never as Go errors, so callers
// always get a renderable status.
func (r *Router) Route(ctx context.Context, call domain.ToolCall) domain.CallResult {
	entry, ok := r.resolve(call)
	if !ok {
		return domain.CallResult{
			Status: domain.StatusServiceNotFound,
			Error:  fmt.Sprintf("no healthy service exposes tool %q", call.Tool),
		}
	}
	return r.forward(ctx, entry, call)
}

func (r *Router) resolve(call domain.ToolCall) (*domain.ServiceEntry, bool) {
	if call.Service != "" {
		entry := r.registry.Get(call.Service)
		if entry == nil || !entry.Healthy {
			return nil, false
		}
		if _, ok := entry.Tools[call.Tool]; !ok {
			return nil, false
		}
		return entry, true
	}
	return r.registry.FindTool(call.Tool)
}

func (r *Router) forward(ctx context.Context, entry *domain.ServiceEntry, call domain.ToolCall) domain.CallResult {
	body, err := json.Marshal(map[string]interface{}{"parameters": call.Parameters})
	if err != nil {
		return domain.CallResult{
			Status:  domain.StatusForwardError,
			Service: entry.Name,
			Error:   err.Error(),
		}
	}

	url := fmt.Sprintf("%s/mcp/tools/%s", entry.URL, call.Tool)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.CallResult{
			Status:  domain.StatusForwardError,
			Service: entry.Name,
			Error:   err.Error(),
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		status := domain.StatusForwardError
		if isTimeout(err) {
			status = domain.StatusTimeout
		}
		r.log.Warn("tool forward failed",
			logger.String("service", entry.Name),
			logger.String("tool", call.Tool),
			logger.Error(err))
		return domain.CallResult{Status: status, Service: entry.Name, Error: err.Error()}
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return domain.CallResult{
			Status:  domain.StatusServiceError,
			Service: entry.Name,
			Error:   fmt.Sprintf("service returned %d", resp.StatusCode),
		}
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.CallResult{
			Status:  domain.StatusForwardError,
			Service: entry.Name,
			Error:   fmt.Sprintf("decoding response: %v", err),
		}
	}

	return domain.CallResult{
		Status:  domain.StatusSuccess,
		Result:  result,
		Service: entry.Name,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
