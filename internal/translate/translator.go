package translate

import (
	"context"
	"fmt"
	"time"

	"github.com/llmhub/llmhub/internal/domain"
	"github.com/llmhub/llmhub/internal/logger"
	"github.com/llmhub/llmhub/internal/tools"
)

// Request defaults and bounds for the inference tool.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1000
	maxTemperature     = 2.0
)

// ValidationError marks a request the caller got wrong, as opposed to
// an upstream failure. Handlers map it to a 400.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Upstream runs completions against the model server.
type Upstream interface {
	Completion(ctx context.Context, req domain.CompletionRequest) (map[string]interface{}, error)
}

// ModelSource lists the currently discovered models.
type ModelSource interface {
	All() []*domain.ModelRecord
}

// Cache stores completion results. Implementations must treat a miss
// as (nil, nil).
type Cache interface {
	Get(ctx context.Context, req domain.CompletionRequest) (map[string]interface{}, error)
	Set(ctx context.Context, req domain.CompletionRequest, result map[string]interface{}) error
}

// Translator maps tool calls onto the upstream completion API and
// renders responses in the OpenAI completion shape.
type Translator struct {
	upstream Upstream
	models   ModelSource
	cache    Cache
	log      logger.Logger
}

func New(upstream Upstream, models ModelSource, cache Cache, log logger.Logger) *Translator {
	return &Translator{upstream: upstream, models: models, cache: cache, log: log}
}

// Execute dispatches a tool call by name. Unknown tools return a
// ValidationError.
func (t *Translator) Execute(ctx context.Context, tool string, params map[string]interface{}) (map[string]interface{}, error) {
	switch tool {
	case tools.ToolInference:
		return t.inference(ctx, params)
	case tools.ToolListModels:
		return t.listModels(), nil
	default:
		return nil, validationErrorf("unknown tool: %s", tool)
	}
}

func (t *Translator) inference(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	req, err := parseCompletionRequest(params)
	if err != nil {
		return nil, err
	}

	if t.cache != nil {
		if cached, err := t.cache.Get(ctx, req); err != nil {
			t.log.Warn("completion cache lookup failed", logger.Error(err))
		} else if cached != nil {
			t.log.Debug("completion served from cache", logger.String("model", req.Model))
			return cached, nil
		}
	}

	raw, err := t.upstream.Completion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	result := mapCompletionResponse(raw, req.Model)
	if t.cache != nil {
		if err := t.cache.Set(ctx, req, result); err != nil {
			t.log.Warn("completion cache write failed", logger.Error(err))
		}
	}
	return result, nil
}

func (t *Translator) listModels() map[string]interface{} {
	records := t.models.All()
	data := make([]interface{}, 0, len(records))
	for _, rec := range records {
		entry := map[string]interface{}{"id": rec.ID, "object": "model"}
		for k, v := range rec.Metadata {
			if _, taken := entry[k]; !taken {
				entry[k] = v
			}
		}
		data = append(data, entry)
	}
	return map[string]interface{}{"object": "list", "data": data}
}

func parseCompletionRequest(params map[string]interface{}) (domain.CompletionRequest, error) {
	req := domain.CompletionRequest{
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}

	prompt, ok := params["prompt"].(string)
	if !ok || prompt == "" {
		return req, validationErrorf("prompt is required")
	}
	req.Prompt = prompt

	model, ok := params["model"].(string)
	if !ok || model == "" {
		return req, validationErrorf("model is required")
	}
	req.Model = model

	if raw, present := params["temperature"]; present {
		temp, ok := toFloat(raw)
		if !ok {
			return req, validationErrorf("temperature must be a number")
		}
		if temp < 0 || temp > maxTemperature {
			return req, validationErrorf("temperature must be between 0 and %g", maxTemperature)
		}
		req.Temperature = temp
	}

	if raw, present := params["max_tokens"]; present {
		n, ok := toFloat(raw)
		if !ok || n != float64(int(n)) {
			return req, validationErrorf("max_tokens must be an integer")
		}
		if n < 1 {
			return req, validationErrorf("max_tokens must be at least 1")
		}
		req.MaxTokens = int(n)
	}

	return req, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// mapCompletionResponse renders the upstream payload in the OpenAI
// text_completion shape. Upstreams that return bare text instead of
// choices get a single synthesized choice.
func mapCompletionResponse(raw map[string]interface{}, model string) map[string]interface{} {
	choices, _ := raw["choices"].([]interface{})
	if len(choices) == 0 {
		text, _ := raw["text"].(string)
		choices = []interface{}{map[string]interface{}{
			"text":          text,
			"index":         0,
			"finish_reason": "stop",
		}}
	}

	id, _ := raw["id"].(string)
	if id == "" {
		id = "unknown"
	}
	created, ok := toFloat(raw["created"])
	if !ok {
		created = float64(time.Now().Unix())
	}
	usage, _ := raw["usage"].(map[string]interface{})
	if usage == nil {
		usage = map[string]interface{}{}
	}

	return map[string]interface{}{
		"id":      "cmpl-" + id,
		"object":  "text_completion",
		"created": int64(created),
		"model":   model,
		"choices": choices,
		"usage":   usage,
	}
}
