package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/yourorg/labreport-extract/internal/pipeline"
)

// roleAssignmentJSON is the wire shape the model is asked to produce; it maps
// 1:1 onto pipeline.RoleAssignment's externally-observable fields (spec
// §6.3.1: "same schema and constraints as §3.4").
type roleAssignmentJSON struct {
	Role     string `json:"role"`
	ColIndex int    `json:"col_index"`
}

type headerRolesJSON struct {
	Roles []roleAssignmentJSON `json:"roles"`
}

var allowedRoles = []string{"name", "result", "unit", "reference", "min", "max", "date"}

// OpenAIHeaderFallback implements pipeline.HeaderRoleFallback (spec §6.3.1)
// over the OpenAI structured-output API. It is safe for concurrent use: each
// call takes the instance's own mutex and then acquires the process-wide
// shared semaphore, so calls through one instance run one at a time while
// total in-flight requests across the process stay bounded.
type OpenAIHeaderFallback struct {
	client  openai.Client
	model   string
	timeout time.Duration
	maxConc int

	mu      sync.Mutex
	breaker *CircuitBreaker
}

// NewOpenAIHeaderFallback builds a fallback bound to apiKey/model. timeout is
// the per-call deadline; maxConcurrent sizes the process-wide shared
// semaphore the first time any fallback instance in the process uses it.
func NewOpenAIHeaderFallback(apiKey, model string, timeout time.Duration, maxConcurrent int) *OpenAIHeaderFallback {
	var opts []option.RequestOption
	opts = append(opts, option.WithAPIKey(apiKey))
	return &OpenAIHeaderFallback{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
		maxConc: maxConcurrent,
		breaker: NewCircuitBreaker(DefaultCircuitBreakerConfig()),
	}
}

// InferHeaderRoles asks the model to assign a role to each column of
// sampleRows, then validates the result with the same invariants the
// rule-based cascade enforces (spec §4.3.3, §3.4). Any failure — timeout,
// schema violation, transport error, circuit open — yields (zero, false);
// the caller falls back to its previous best rule-based outcome.
func (f *OpenAIHeaderFallback) InferHeaderRoles(ctx context.Context, sampleRows [][]string) (pipeline.HeaderRoles, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.breaker.Allow() {
		slog.Debug("fallback.header_roles circuit open, skipping")
		return pipeline.HeaderRoles{}, false
	}

	if err := acquire(ctx, f.maxConc); err != nil {
		slog.Debug("fallback.header_roles semaphore wait aborted", "err", err)
		return pipeline.HeaderRoles{}, false
	}
	defer release(f.maxConc)

	reqCtx := ctx
	var cancel context.CancelFunc
	if f.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	roles, err := f.call(reqCtx, sampleRows)
	if err != nil {
		if classify(err) == CategoryTransient {
			f.breaker.RecordFailure()
		}
		slog.Warn("fallback.header_roles failed", "err", err)
		return pipeline.HeaderRoles{}, false
	}
	f.breaker.RecordSuccess()
	return roles, true
}

func (f *OpenAIHeaderFallback) call(ctx context.Context, sampleRows [][]string) (pipeline.HeaderRoles, error) {
	systemPrompt := "You label the columns of a lab report table. Given sample " +
		"data rows (each an array of cell strings, left to right), assign each " +
		"column index a role: name, result, unit, reference, min, max, or date. " +
		"Use reference only when one column holds a combined low-high range; use " +
		"min and max only when they are separate columns. Every column index must " +
		"be used at most once."

	userContent := formatSampleRows(sampleRows)

	resp, err := f.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(f.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userContent),
		},
		MaxCompletionTokens: openai.Int(500),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "header_roles",
					Schema: headerRolesSchema(),
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return pipeline.HeaderRoles{}, translateError(err)
	}
	if len(resp.Choices) == 0 {
		return pipeline.HeaderRoles{}, ErrInvalidOutput
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return pipeline.HeaderRoles{}, ErrRefused
	}
	if choice.Message.Content == "" {
		return pipeline.HeaderRoles{}, ErrInvalidOutput
	}

	var parsed headerRolesJSON
	if err := json.Unmarshal([]byte(choice.Message.Content), &parsed); err != nil {
		return pipeline.HeaderRoles{}, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	roles, err := toHeaderRoles(parsed)
	if err != nil {
		return pipeline.HeaderRoles{}, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return roles, nil
}

func toHeaderRoles(parsed headerRolesJSON) (pipeline.HeaderRoles, error) {
	roles := pipeline.HeaderRoles{Assignments: make([]pipeline.RoleAssignment, 0, len(parsed.Roles))}
	for _, r := range parsed.Roles {
		role := pipeline.Role(r.Role)
		if !isAllowedRole(r.Role) {
			return pipeline.HeaderRoles{}, fmt.Errorf("unrecognized role %q", r.Role)
		}
		if r.ColIndex < 0 {
			return pipeline.HeaderRoles{}, fmt.Errorf("negative col_index %d", r.ColIndex)
		}
		roles.Assignments = append(roles.Assignments, pipeline.RoleAssignment{
			Role:           role,
			ColIndex:       r.ColIndex,
			Confidence:     1.0,
			Source:         pipeline.SourceLLM,
			MeetsThreshold: true,
		})
	}
	if err := roles.Validate(); err != nil {
		return pipeline.HeaderRoles{}, err
	}
	return roles, nil
}

func isAllowedRole(r string) bool {
	for _, a := range allowedRoles {
		if a == r {
			return true
		}
	}
	return false
}

func headerRolesSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"roles": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"role":      map[string]interface{}{"type": "string", "enum": allowedRoles},
						"col_index": map[string]interface{}{"type": "integer", "minimum": 0},
					},
					"required":             []string{"role", "col_index"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"roles"},
		"additionalProperties": false,
	}
}

func formatSampleRows(rows [][]string) string {
	out := "SAMPLE_ROWS:\n"
	for i, row := range rows {
		out += fmt.Sprintf("row_%d=%v\n", i+1, row)
	}
	return out
}
