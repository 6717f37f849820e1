package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtraction(t *testing.T) {
	ext, err := parseExtraction(`{"intent":"create","fields":{"sku":"BLACK_L","end_time":" 2026-01-30 20:00 "}}`)
	require.NoError(t, err)
	assert.Equal(t, IntentCreate, ext.Intent)
	assert.Equal(t, "BLACK_L", ext.Fields["sku"])
	// values are trimmed
	assert.Equal(t, "2026-01-30 20:00", ext.Fields["end_time"])
}

func TestParseExtractionFencedJSON(t *testing.T) {
	raw := "```json\n{\"intent\":\"pay\",\"fields\":{\"order_id\":\"ord-1\"}}\n```"
	ext, err := parseExtraction(raw)
	require.NoError(t, err)
	assert.Equal(t, IntentPay, ext.Intent)
	assert.Equal(t, "ord-1", ext.Fields["order_id"])
}

func TestParseExtractionRejectsGarbage(t *testing.T) {
	_, err := parseExtraction("sure, I'd be happy to help!")
	assert.Error(t, err)

	_, err = parseExtraction(`{"intent":"make_coffee","fields":{}}`)
	assert.Error(t, err)
}

func TestParseExtractionDropsEmptyFields(t *testing.T) {
	ext, err := parseExtraction(`{"intent":"none","fields":{"sku":"","order_id":"  "}}`)
	require.NoError(t, err)
	assert.Empty(t, ext.Fields)
}

func TestMissingFieldsOrder(t *testing.T) {
	missing := MissingFields(IntentCreate, map[string]string{"sku": "BLACK_L"})
	assert.Equal(t, []string{FieldCustomerName, FieldContact, FieldStartTime, FieldEndTime}, missing)

	assert.Empty(t, MissingFields(IntentQuery, map[string]string{FieldOrderID: "ord-1"}))
}

type staticCompleter struct{ out string }

func (s staticCompleter) Complete(context.Context, string, string) (string, error) {
	return s.out, nil
}

func TestCompleterExtractorPassesPending(t *testing.T) {
	e := &CompleterExtractor{Completer: staticCompleter{
		out: `{"intent":"none","fields":{"end_time":"2026-01-30 20:00"}}`,
	}}
	pending := &Extraction{Intent: IntentCreate, Fields: map[string]string{"sku": "BLACK_L"}}
	ext, err := e.Extract(context.Background(), "until the 30th 8pm", pending)
	require.NoError(t, err)
	assert.Equal(t, IntentNone, ext.Intent)
	assert.Equal(t, "2026-01-30 20:00", ext.Fields["end_time"])
}
