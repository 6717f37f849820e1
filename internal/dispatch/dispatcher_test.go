package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rental-agent/internal/orders"
	"rental-agent/internal/session"
)

var testNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeExtractor struct {
	fn func(utterance string, pending *Extraction) (Extraction, error)
}

func (f *fakeExtractor) Extract(_ context.Context, utterance string, pending *Extraction) (Extraction, error) {
	return f.fn(utterance, pending)
}

type fakeRetriever struct {
	passages []string
	err      error
}

func (f *fakeRetriever) Retrieve(context.Context, string, int) ([]string, error) {
	return f.passages, f.err
}

func newTestDispatcher(ext Extractor) (*Dispatcher, *orders.Service) {
	svc := orders.NewService(orders.NewMemStore(),
		orders.NewSKUSet([]string{"BLACK_L", "WHITE_M"}), zap.NewNop().Sugar())
	svc.Now = func() time.Time { return testNow }
	return &Dispatcher{
		Sessions:  session.NewMemoryStore(),
		Orders:    svc,
		Retriever: &fakeRetriever{},
		Extractor: ext,
		Logger:    zap.NewNop().Sugar(),
		Loc:       time.UTC,
		Timeout:   time.Second,
		TopK:      3,
		Now:       func() time.Time { return testNow },
	}, svc
}

func scripted(extractions ...Extraction) Extractor {
	i := 0
	return &fakeExtractor{fn: func(string, *Extraction) (Extraction, error) {
		e := extractions[i]
		if i < len(extractions)-1 {
			i++
		}
		return e, nil
	}}
}

func TestClarificationLoop(t *testing.T) {
	d, _ := newTestDispatcher(scripted(
		Extraction{Intent: IntentCreate, Fields: map[string]string{
			FieldCustomerName: "张三",
			FieldContact:      "zhangsan",
			FieldSKU:          "black_l",
			FieldStartTime:    "2026-01-29 08:00",
		}},
		Extraction{Intent: IntentNone, Fields: map[string]string{
			FieldEndTime: "2026-01-30 20:00",
		}},
	))
	ctx := context.Background()

	res, err := d.HandleTurn(ctx, "s-1", "rent a black L for 张三, contact zhangsan, from jan 29 8am", "")
	require.NoError(t, err)
	assert.True(t, res.Pending)
	// exactly the one missing field is named
	assert.Equal(t, "I still need: end_time", res.Reply)
	assert.Nil(t, res.Order)

	// the follow-up supplies only end_time; earlier fields are retained
	res, err = d.HandleTurn(ctx, "s-1", "until jan 30 8pm", "")
	require.NoError(t, err)
	assert.False(t, res.Pending)
	require.NotNil(t, res.Order)
	assert.Equal(t, "张三", res.Order.CustomerName)
	assert.Equal(t, "BLACK_L", res.Order.SKU)
	assert.Equal(t, time.Date(2026, 1, 29, 8, 0, 0, 0, time.UTC), res.Order.StartAt)
	assert.Equal(t, time.Date(2026, 1, 30, 20, 0, 0, 0, time.UTC), res.Order.EndAt)

	// pending is cleared after success
	sess, err := d.Sessions.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Nil(t, sess.Pending)
}

func fullCreateFields() map[string]string {
	return map[string]string{
		FieldCustomerName: "张三",
		FieldContact:      "zhangsan",
		FieldSKU:          "black_l",
		FieldStartTime:    "2026-01-29 08:00",
		FieldEndTime:      "2026-01-30 20:00",
	}
}

func TestCreateIdempotentAcrossRetries(t *testing.T) {
	d, _ := newTestDispatcher(scripted(
		Extraction{Intent: IntentCreate, Fields: fullCreateFields()},
	))
	ctx := context.Background()

	first, err := d.HandleTurn(ctx, "s-1", "book it", "tok-retry")
	require.NoError(t, err)
	require.NotNil(t, first.Order)

	// same fully-specified call replayed with the same request token
	second, err := d.HandleTurn(ctx, "s-2", "book it", "tok-retry")
	require.NoError(t, err)
	require.NotNil(t, second.Order)
	assert.Equal(t, first.Order.OrderID, second.Order.OrderID)
}

func TestConflictKeepsPendingAndSuggests(t *testing.T) {
	d, svc := newTestDispatcher(scripted(
		Extraction{Intent: IntentCreate, Fields: fullCreateFields()},
	))
	ctx := context.Background()

	_, err := svc.Create(ctx, orders.CreateInput{
		CustomerName: "prior", Contact: "prior", SKU: "BLACK_L",
		StartAt: time.Date(2026, 1, 29, 0, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	res, err := d.HandleTurn(ctx, "s-1", "book it", "")
	require.NoError(t, err)
	assert.True(t, res.Pending)
	assert.Contains(t, res.Reply, "already reserved")
	assert.Contains(t, res.Reply, "2026-01-31T00:00:00Z")

	sess, _ := d.Sessions.Get(ctx, "s-1")
	require.NotNil(t, sess.Pending)
	assert.Equal(t, string(IntentCreate), sess.Pending.Intent)
}

func TestExtractorFailureDegrades(t *testing.T) {
	d, _ := newTestDispatcher(&fakeExtractor{fn: func(string, *Extraction) (Extraction, error) {
		return Extraction{}, errors.New("model timeout")
	}})

	res, err := d.HandleTurn(context.Background(), "s-1", "???", "")
	require.NoError(t, err, "a collaborator failure never fails the turn")
	assert.Contains(t, res.Reply, "say it again")
}

func TestTransitionIntents(t *testing.T) {
	d, svc := newTestDispatcher(nil)
	ctx := context.Background()

	order, err := svc.Create(ctx, orders.CreateInput{
		CustomerName: "张三", Contact: "zhangsan", SKU: "BLACK_L",
		StartAt: time.Date(2026, 1, 29, 8, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, 1, 30, 20, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	d.Extractor = scripted(
		Extraction{Intent: IntentPay, Fields: map[string]string{FieldOrderID: order.OrderID}},
		Extraction{Intent: IntentShip, Fields: map[string]string{FieldOrderID: order.OrderID, FieldLockerCode: "LC123"}},
		Extraction{Intent: IntentComplete, Fields: map[string]string{FieldOrderID: order.OrderID}},
	)

	res, err := d.HandleTurn(ctx, "s-1", "mark it paid", "")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, res.Order.Status)

	res, err = d.HandleTurn(ctx, "s-1", "ship it, locker LC123", "")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, res.Order.Status)

	res, err = d.HandleTurn(ctx, "s-1", "done, garment returned", "")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusSuccessful, res.Order.Status)
}

func TestShipWithoutLockerAsksForIt(t *testing.T) {
	d, svc := newTestDispatcher(nil)
	ctx := context.Background()

	order, err := svc.Create(ctx, orders.CreateInput{
		CustomerName: "张三", Contact: "zhangsan", SKU: "BLACK_L",
		StartAt: time.Date(2026, 1, 29, 8, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, 1, 30, 20, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	d.Extractor = scripted(
		Extraction{Intent: IntentShip, Fields: map[string]string{FieldOrderID: order.OrderID}},
	)
	res, err := d.HandleTurn(ctx, "s-1", "ship it", "")
	require.NoError(t, err)
	assert.True(t, res.Pending)
	assert.Equal(t, "I still need: locker_code", res.Reply)
}

func TestQueryUnknownOrder(t *testing.T) {
	d, _ := newTestDispatcher(scripted(
		Extraction{Intent: IntentQuery, Fields: map[string]string{FieldOrderID: "ord-nope"}},
	))
	res, err := d.HandleTurn(context.Background(), "s-1", "where is ord-nope", "")
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "could not find order ord-nope")
}

func TestRulesLookupReplies(t *testing.T) {
	d, _ := newTestDispatcher(scripted(
		Extraction{Intent: IntentRules, Fields: map[string]string{FieldQuestion: "deposit policy"}},
	))

	d.Retriever = &fakeRetriever{passages: []string{"Deposit is refunded within 7 days."}}
	res, err := d.HandleTurn(context.Background(), "s-1", "how does the deposit work", "")
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "Deposit is refunded within 7 days.")

	d.Retriever = &fakeRetriever{}
	res, err = d.HandleTurn(context.Background(), "s-2", "how does the deposit work", "")
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "no rules matching")

	d.Retriever = &fakeRetriever{err: errors.New("qdrant down")}
	res, err = d.HandleTurn(context.Background(), "s-3", "how does the deposit work", "")
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "unavailable")
}

func TestSuggestSlotIntent(t *testing.T) {
	d, _ := newTestDispatcher(scripted(
		Extraction{Intent: IntentSuggestSlot, Fields: map[string]string{
			FieldSKU:       "black_l",
			FieldStartTime: "2026-01-29 08:00",
			FieldEndTime:   "2026-01-29 12:00",
		}},
	))
	res, err := d.HandleTurn(context.Background(), "s-1", "when is the black L free around jan 29", "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Slots)
	assert.Contains(t, res.Reply, "Free slots for SKU BLACK_L")
}

func TestNoIntentNoPending(t *testing.T) {
	d, _ := newTestDispatcher(scripted(Extraction{Intent: IntentNone}))
	res, err := d.HandleTurn(context.Background(), "", "hello", "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID, "a fresh session id is assigned")
	assert.Contains(t, res.Reply, "rental orders")
}
