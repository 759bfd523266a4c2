package intent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
	"google.golang.org/genai"

	"winterops_backend/platform/ai/moonshot"
	"winterops_backend/platform/logger"
)

const classifierInstruction = `You interpret SMS messages from snow-removal crews managing work tickets.

Messages may contain equipment names ("plow truck", "skid steer", "salt truck"),
salt quantities ("3 yards bulk salt", "5 bags", "2 bags calcium"), addresses or
property names, status words ("START", "DONE", "on my way"), and free-text notes.

Call RecordIntent exactly once with your reading of the message:
- intent: one of start_ticket, update_ticket, complete_ticket, query_address, provide_details, unknown
- the extracted fields, omitting anything not present in the message
- confidence: high, medium, or low

Examples:
"START" -> intent start_ticket, confidence high
"Plow truck 3 yards salt" -> intent provide_details, equipment "Plow Truck", bulk_salt_qty 3, confidence high
"DONE 5 bags" -> intent complete_ticket, bag_salt_qty 5, confidence high
"123 main street" -> intent query_address, address "123 main street", confidence medium
"Lot was icy, salted twice" -> intent provide_details, notes "Lot was icy, salted twice", confidence high`

// recordIntentInput is the tool schema the model fills in.
type recordIntentInput struct {
	Intent     string `json:"intent"`
	Equipment  string `json:"equipment,omitempty"`
	BulkSalt   *int   `json:"bulk_salt_qty,omitempty"`
	BagSalt    *int   `json:"bag_salt_qty,omitempty"`
	Calcium    *int   `json:"calcium_chloride_qty,omitempty"`
	Address    string `json:"address,omitempty"`
	Notes      string `json:"notes,omitempty"`
	Confidence string `json:"confidence"`
}

type recordIntentOutput struct {
	Success bool `json:"success"`
}

// Classifier reads inbound messages with the shorthand table first and an
// LLM agent second. A zero-value or unconfigured classifier only matches
// shorthand and returns unknown for everything else.
type Classifier struct {
	runner   *runner.Runner
	sessions session.Service
	timeout  time.Duration
	log      *logger.Logger

	// runMu serializes agent runs; the tool writes into captured.
	runMu    sync.Mutex
	captured *Classification
}

// NewClassifier builds the classifier agent. An empty API key yields a
// shorthand-only classifier, which keeps development environments working
// without model access.
func NewClassifier(apiKey string, timeout time.Duration, log *logger.Logger) (*Classifier, error) {
	c := &Classifier{timeout: timeout, log: log}
	if apiKey == "" {
		log.Warn("intent classifier running without a model; shorthand commands only")
		return c, nil
	}

	kimi := moonshot.NewModel(moonshot.Config{
		APIKey:          apiKey,
		Model:           "kimi-k2.5",
		DisableThinking: true,
	})

	recordTool, err := functiontool.New(functiontool.Config{
		Name:        "RecordIntent",
		Description: "Records the structured interpretation of the SMS message. Call exactly once.",
	}, func(_ tool.Context, input recordIntentInput) (recordIntentOutput, error) {
		c.captured = &Classification{
			Intent:     parseKind(input.Intent),
			Equipment:  input.Equipment,
			BulkSalt:   input.BulkSalt,
			BagSalt:    input.BagSalt,
			Calcium:    input.Calcium,
			Address:    input.Address,
			Notes:      input.Notes,
			Confidence: parseConfidence(input.Confidence),
		}
		return recordIntentOutput{Success: true}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build RecordIntent tool: %w", err)
	}

	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        "IntentClassifier",
		Model:       kimi,
		Description: "Interprets crew SMS messages into structured ticket intents.",
		Instruction: classifierInstruction,
		Tools:       []tool.Tool{recordTool},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier agent: %w", err)
	}

	sessions := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        "intent-classifier",
		Agent:          adkAgent,
		SessionService: sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier runner: %w", err)
	}

	c.runner = r
	c.sessions = sessions
	return c, nil
}

// Classify interprets one inbound message. Shorthand wins outright; the
// model is consulted otherwise, under the configured timeout. Any failure
// degrades to unknown with low confidence.
func (c *Classifier) Classify(ctx context.Context, body string, convCtx Context) Classification {
	if match, ok := MatchShorthand(body); ok {
		return match
	}
	if c.runner == nil {
		return Unknown()
	}

	c.runMu.Lock()
	defer c.runMu.Unlock()
	c.captured = nil

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.run(ctx, body, convCtx); err != nil {
		c.log.Error("intent classification failed", "error", err)
		return Unknown()
	}
	if c.captured == nil {
		c.log.Warn("classifier returned no RecordIntent call")
		return Unknown()
	}
	return *c.captured
}

func (c *Classifier) run(ctx context.Context, body string, convCtx Context) error {
	sessionID := uuid.New().String()
	userID := "classifier"

	if _, err := c.sessions.Create(ctx, &session.CreateRequest{
		AppName:   "intent-classifier",
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		return fmt.Errorf("failed to create classifier session: %w", err)
	}
	defer func() {
		_ = c.sessions.Delete(ctx, &session.DeleteRequest{
			AppName:   "intent-classifier",
			UserID:    userID,
			SessionID: sessionID,
		})
	}()

	prompt := buildPrompt(body, convCtx)
	userMessage := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}

	runConfig := agent.RunConfig{StreamingMode: agent.StreamingModeNone}
	for event := range c.runner.Run(ctx, userID, sessionID, userMessage, runConfig) {
		_ = event
	}
	return ctx.Err()
}

func buildPrompt(body string, convCtx Context) string {
	prompt := "Conversation state: " + orIdle(convCtx.State) + "\n"
	if convCtx.PropertyName != "" {
		prompt += "Current property: " + convCtx.PropertyName + "\n"
	}
	if convCtx.HasActiveTicket {
		prompt += "The crew member has an open ticket.\n"
	}
	return prompt + "\nMessage: " + body
}

func orIdle(state string) string {
	if state == "" {
		return "idle"
	}
	return state
}
