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
)

type patientNameJSON struct {
	PatientName string `json:"patient_name"`
}

// OpenAIPatientNameFallback implements pipeline.PatientNameFallback (spec
// §6.3.2). Same concurrency discipline as OpenAIHeaderFallback: shared
// process-wide semaphore, per-instance mutex, per-instance circuit breaker.
type OpenAIPatientNameFallback struct {
	client  openai.Client
	model   string
	timeout time.Duration
	maxConc int

	mu      sync.Mutex
	breaker *CircuitBreaker
}

func NewOpenAIPatientNameFallback(apiKey, model string, timeout time.Duration, maxConcurrent int) *OpenAIPatientNameFallback {
	var opts []option.RequestOption
	opts = append(opts, option.WithAPIKey(apiKey))
	return &OpenAIPatientNameFallback{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
		maxConc: maxConcurrent,
		breaker: NewCircuitBreaker(DefaultCircuitBreakerConfig()),
	}
}

// ExtractPatientName asks the model to find the animal/patient name in the
// header-region text, then rejects any result equal to knownClientName (spec
// §4.7: "reject results equal to the already-resolved clientName" — enforced
// again here defensively even though MetadataExtractor already does it,
// since a caller may invoke this fallback directly).
func (f *OpenAIPatientNameFallback) ExtractPatientName(ctx context.Context, headerRegionText, knownClientName string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.breaker.Allow() {
		slog.Debug("fallback.patient_name circuit open, skipping")
		return "", false
	}

	if err := acquire(ctx, f.maxConc); err != nil {
		slog.Debug("fallback.patient_name semaphore wait aborted", "err", err)
		return "", false
	}
	defer release(f.maxConc)

	reqCtx := ctx
	var cancel context.CancelFunc
	if f.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	name, err := f.call(reqCtx, headerRegionText, knownClientName)
	if err != nil {
		if classify(err) == CategoryTransient {
			f.breaker.RecordFailure()
		}
		slog.Warn("fallback.patient_name failed", "err", err)
		return "", false
	}
	f.breaker.RecordSuccess()

	if name == "" || name == knownClientName {
		return "", false
	}
	return name, true
}

func (f *OpenAIPatientNameFallback) call(ctx context.Context, headerRegionText, knownClientName string) (string, error) {
	systemPrompt := "You find the patient (animal) name in the header region of " +
		"a veterinary lab report. The client/guardian name may also be present; " +
		"do not confuse the two. Return an empty string if no patient name is " +
		"present."

	userContent := fmt.Sprintf("HEADER_REGION:\n%s\n\nKNOWN_CLIENT_NAME: %q", headerRegionText, knownClientName)

	resp, err := f.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(f.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userContent),
		},
		MaxCompletionTokens: openai.Int(100),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "patient_name",
					Schema: patientNameSchema(),
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return "", translateError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrInvalidOutput
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", ErrRefused
	}
	if choice.Message.Content == "" {
		return "", ErrInvalidOutput
	}

	var parsed patientNameJSON
	if err := json.Unmarshal([]byte(choice.Message.Content), &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return parsed.PatientName, nil
}

func patientNameSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"patient_name": map[string]interface{}{"type": "string"},
		},
		"required":             []string{"patient_name"},
		"additionalProperties": false,
	}
}
