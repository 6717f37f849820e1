package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"rental-agent/internal/llm"
)

// Extraction is the structured reading of one utterance.
type Extraction struct {
	Intent Intent            `json:"intent"`
	Fields map[string]string `json:"fields"`
}

// Extractor classifies an utterance and pulls out field values. The
// pending call, if any, is passed along so a bare answer like
// "until 2026-01-30 20:00" lands in the right slot.
type Extractor interface {
	Extract(ctx context.Context, utterance string, pending *Extraction) (Extraction, error)
}

const extractSystemPrompt = `You are the intent parser of a clothing rental order service.
Classify the user message into exactly one intent and extract field values.
Intents and their fields:
- create: customer_name, contact, sku, start_time, end_time, buffer_hours
- query: order_id
- update: order_id, customer_name, contact, sku, start_time, end_time, locker_code
- pay: order_id
- ship: order_id, locker_code
- complete: order_id
- cancel: order_id
- suggest_slot: sku, start_time, end_time, window_days
- rules: question (policy/process/deposit/billing questions)
- none: the message carries no intent of its own
Times must be formatted as RFC3339 or "2006-01-02 15:04". SKUs are COLOR_SIZE.
If the message only supplies values for the pending call below, answer with
intent "none" and just those fields.
Respond with one JSON object {"intent":"...","fields":{...}} and nothing else.`

// CompleterExtractor drives the completion collaborator. The model only
// fills and classifies; control flow stays with the dispatcher.
type CompleterExtractor struct {
	Completer llm.Completer
}

func (e *CompleterExtractor) Extract(ctx context.Context, utterance string, pending *Extraction) (Extraction, error) {
	prompt := "User message: " + utterance
	if pending != nil {
		b, _ := json.Marshal(pending)
		prompt += "\nPending call: " + string(b)
	}
	raw, err := e.Completer.Complete(ctx, extractSystemPrompt, prompt)
	if err != nil {
		return Extraction{}, err
	}
	return parseExtraction(raw)
}

// parseExtraction tolerates fenced or surrounded JSON; models do that.
func parseExtraction(raw string) (Extraction, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "{"); i >= 0 {
		if j := strings.LastIndex(raw, "}"); j > i {
			raw = raw[i : j+1]
		}
	}
	var ext Extraction
	if err := json.Unmarshal([]byte(raw), &ext); err != nil {
		return Extraction{}, fmt.Errorf("parse extraction: %w", err)
	}
	if ext.Fields == nil {
		ext.Fields = map[string]string{}
	}
	for k, v := range ext.Fields {
		ext.Fields[k] = strings.TrimSpace(v)
		if ext.Fields[k] == "" {
			delete(ext.Fields, k)
		}
	}
	if ext.Intent != IntentNone && !ext.Intent.Known() {
		return Extraction{}, fmt.Errorf("parse extraction: unknown intent %q", ext.Intent)
	}
	return ext, nil
}
