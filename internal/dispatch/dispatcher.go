package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rental-agent/internal/orders"
	"rental-agent/internal/rules"
	"rental-agent/internal/session"
)

// Dispatcher turns conversational turns into validated calls against
// the lifecycle manager or the retrieval collaborator. It owns the
// clarification loop: a call with missing required fields never reaches
// the lifecycle manager.
type Dispatcher struct {
	Sessions  session.Store
	Orders    *orders.Service
	Retriever rules.Retriever
	Extractor Extractor
	Logger    *zap.SugaredLogger

	// Loc renders times back to the user and interprets wall-clock
	// input without an offset.
	Loc *time.Location

	// Timeout bounds each collaborator round trip. Expiry degrades the
	// turn, it never fails it.
	Timeout time.Duration

	TopK int
	Now  func() time.Time
}

// Result is one turn's outcome for the conversational boundary.
type Result struct {
	SessionID string             `json:"session_id"`
	Reply     string             `json:"reply"`
	Order     *orders.Order      `json:"order,omitempty"`
	Slots     []orders.TimeRange `json:"slots,omitempty"`
	// Pending is set when the turn ended in a clarification request.
	Pending bool `json:"pending,omitempty"`
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// HandleTurn processes one utterance for one session. requestToken is
// the optional client retry token; when empty, creates get a token
// generated the first time the intent is seen, so a clarified-then-
// completed create stays a single mutation across front-end retries.
func (d *Dispatcher) HandleTurn(ctx context.Context, sessionID, text, requestToken string) (*Result, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	sess, err := d.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	sess.Remember("user", text, d.now())

	var pendingExt *Extraction
	if sess.Pending != nil {
		pendingExt = &Extraction{Intent: Intent(sess.Pending.Intent), Fields: sess.Pending.Fields}
	}

	cctx, cancel := context.WithTimeout(ctx, d.Timeout)
	ext, err := d.Extractor.Extract(cctx, text, pendingExt)
	cancel()
	if err != nil {
		d.Logger.Warnw("extract_failed", "session_id", sessionID, "err", err)
		return d.finish(ctx, sess, &Result{
			Reply: "Sorry, I could not make sense of that just now. Please say it again.",
		})
	}

	intent := ext.Intent
	fields := map[string]string{}
	token := requestToken
	switch {
	case intent == IntentNone && sess.Pending != nil:
		// Continuation: the utterance only supplies values for the
		// pending call.
		intent = Intent(sess.Pending.Intent)
		for k, v := range sess.Pending.Fields {
			fields[k] = v
		}
		if token == "" {
			token = sess.Pending.IdempotencyToken
		}
	case intent == IntentNone:
		return d.finish(ctx, sess, &Result{
			Reply: "I can create, look up, update, pay, ship, complete or cancel rental orders, suggest free time slots, and answer rental policy questions.",
		})
	case sess.Pending != nil && Intent(sess.Pending.Intent) == intent:
		// Same pending call continued: fields captured in earlier
		// turns are retained, never re-asked.
		for k, v := range sess.Pending.Fields {
			fields[k] = v
		}
		if token == "" {
			token = sess.Pending.IdempotencyToken
		}
	}
	for k, v := range ext.Fields {
		fields[k] = v
	}
	if intent == IntentCreate && token == "" {
		token = uuid.NewString()
	}

	if missing := MissingFields(intent, fields); len(missing) > 0 {
		sess.Pending = &session.PendingCall{Intent: string(intent), Fields: fields, IdempotencyToken: token}
		return d.finish(ctx, sess, &Result{
			Reply:   "I still need: " + strings.Join(missing, ", "),
			Pending: true,
		})
	}

	res, keepPending := d.invoke(ctx, intent, fields, token)
	if keepPending {
		sess.Pending = &session.PendingCall{Intent: string(intent), Fields: fields, IdempotencyToken: token}
	} else {
		sess.Pending = nil
	}
	res.Pending = res.Pending || keepPending
	return d.finish(ctx, sess, res)
}

func (d *Dispatcher) finish(ctx context.Context, sess *session.Session, res *Result) (*Result, error) {
	sess.Remember("assistant", res.Reply, d.now())
	if err := d.Sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	res.SessionID = sess.ID
	return res, nil
}

// invoke runs a fully specified call. The bool says whether the pending
// call should be kept so the user can correct and resubmit.
func (d *Dispatcher) invoke(ctx context.Context, intent Intent, fields map[string]string, token string) (*Result, bool) {
	switch intent {
	case IntentCreate:
		return d.invokeCreate(ctx, fields, token)
	case IntentQuery:
		order, err := d.Orders.Query(ctx, fields[FieldOrderID])
		if err != nil {
			return d.errorResult(err, fields), false
		}
		return &Result{Reply: order.Render(d.Loc), Order: order}, false
	case IntentUpdate:
		return d.invokeUpdate(ctx, fields)
	case IntentPay, IntentShip, IntentComplete, IntentCancel:
		return d.invokeTransition(ctx, intent, fields)
	case IntentSuggestSlot:
		return d.invokeSuggestSlot(ctx, fields)
	case IntentRules:
		return d.invokeRules(ctx, fields[FieldQuestion]), false
	}
	return &Result{Reply: "I did not recognize that request."}, false
}

func (d *Dispatcher) invokeCreate(ctx context.Context, fields map[string]string, token string) (*Result, bool) {
	start, err := d.parseTime(fields[FieldStartTime])
	if err != nil {
		return d.badField(FieldStartTime), true
	}
	end, err := d.parseTime(fields[FieldEndTime])
	if err != nil {
		return d.badField(FieldEndTime), true
	}
	in := orders.CreateInput{
		CustomerName:     fields[FieldCustomerName],
		Contact:          fields[FieldContact],
		SKU:              fields[FieldSKU],
		StartAt:          start,
		EndAt:            end,
		IdempotencyToken: token,
	}
	if v := fields[FieldBufferHours]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			in.BufferHours = &n
		}
	}
	order, err := d.Orders.Create(ctx, in)
	if err != nil {
		return d.errorResult(err, fields), recoverable(err)
	}
	return &Result{
		Reply: "Your rental is booked.\n" + order.Render(d.Loc),
		Order: order,
	}, false
}

func (d *Dispatcher) invokeUpdate(ctx context.Context, fields map[string]string) (*Result, bool) {
	var patch orders.UpdatePatch
	if v, ok := fields[FieldCustomerName]; ok {
		patch.CustomerName = &v
	}
	if v, ok := fields[FieldContact]; ok {
		patch.Contact = &v
	}
	if v, ok := fields[FieldSKU]; ok {
		patch.SKU = &v
	}
	if v, ok := fields[FieldLockerCode]; ok {
		patch.LockerCode = &v
	}
	if v, ok := fields[FieldStartTime]; ok {
		t, err := d.parseTime(v)
		if err != nil {
			return d.badField(FieldStartTime), true
		}
		patch.StartAt = &t
	}
	if v, ok := fields[FieldEndTime]; ok {
		t, err := d.parseTime(v)
		if err != nil {
			return d.badField(FieldEndTime), true
		}
		patch.EndAt = &t
	}
	order, err := d.Orders.Update(ctx, fields[FieldOrderID], patch)
	if err != nil {
		return d.errorResult(err, fields), recoverable(err)
	}
	return &Result{Reply: "Order updated.\n" + order.Render(d.Loc), Order: order}, false
}

var transitionEvents = map[Intent]orders.Event{
	IntentPay:      orders.EventMarkPaid,
	IntentShip:     orders.EventShip,
	IntentComplete: orders.EventComplete,
	IntentCancel:   orders.EventCancel,
}

func (d *Dispatcher) invokeTransition(ctx context.Context, intent Intent, fields map[string]string) (*Result, bool) {
	order, err := d.Orders.Transition(ctx, fields[FieldOrderID], transitionEvents[intent],
		orders.TransitionExtra{LockerCode: fields[FieldLockerCode]})
	if err != nil {
		return d.errorResult(err, fields), false
	}
	return &Result{
		Reply: fmt.Sprintf("Order %s is now %s.", order.OrderID, order.Status),
		Order: order,
	}, false
}

func (d *Dispatcher) invokeSuggestSlot(ctx context.Context, fields map[string]string) (*Result, bool) {
	start, err := d.parseTime(fields[FieldStartTime])
	if err != nil {
		return d.badField(FieldStartTime), true
	}
	var end *time.Time
	if v := fields[FieldEndTime]; v != "" {
		t, err := d.parseTime(v)
		if err != nil {
			return d.badField(FieldEndTime), true
		}
		end = &t
	}
	windowDays := 3
	if v := fields[FieldWindowDays]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			windowDays = n
		}
	}
	slots, window, err := d.Orders.SuggestSlots(ctx, fields[FieldSKU], start, end, windowDays)
	if err != nil {
		return d.errorResult(err, fields), recoverable(err)
	}
	return &Result{
		Reply: orders.RenderSlots(orders.NormalizeSKU(fields[FieldSKU]), window, slots, d.Loc),
		Slots: slots,
	}, false
}

func (d *Dispatcher) invokeRules(ctx context.Context, question string) *Result {
	cctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()
	answer, err := rules.Lookup(cctx, d.Retriever, question, d.TopK)
	if err != nil {
		d.Logger.Warnw("rules_lookup_failed", "err", err)
		return &Result{Reply: "The rules service is unavailable right now, please try again later."}
	}
	if answer == "" {
		return &Result{Reply: "I found no rules matching that question."}
	}
	return &Result{Reply: answer}
}

// errorResult maps the domain error taxonomy onto user-facing replies.
func (d *Dispatcher) errorResult(err error, fields map[string]string) *Result {
	var verr *orders.ValidationError
	if errors.As(err, &verr) {
		return &Result{Reply: "I still need valid values for: " + strings.Join(verr.Fields, ", "), Pending: true}
	}
	var cerr *orders.ConflictError
	if errors.As(err, &cerr) {
		reply := fmt.Sprintf("SKU %s is already reserved in that window.", cerr.SKU)
		if cerr.Suggested != nil {
			reply += fmt.Sprintf(" The next free slot of the same length starts at %s.",
				cerr.Suggested.Start.In(d.loc()).Format(time.RFC3339))
		}
		return &Result{Reply: reply, Pending: true}
	}
	switch {
	case errors.Is(err, orders.ErrNotFound):
		return &Result{Reply: fmt.Sprintf("I could not find order %s.", fields[FieldOrderID])}
	case errors.Is(err, orders.ErrInvalidTransition):
		return &Result{Reply: "That is not possible: " + err.Error()}
	case errors.Is(err, orders.ErrTerminalOrder):
		return &Result{Reply: "That order is already closed and cannot be changed."}
	}
	d.Logger.Errorw("operation_failed", "err", err)
	return &Result{Reply: "Something went wrong on our side, please try again."}
}

func (d *Dispatcher) badField(field string) *Result {
	return &Result{
		Reply:   fmt.Sprintf("I could not read %s; please give it as 2006-01-02 15:04.", field),
		Pending: true,
	}
}

// recoverable says whether the pending call is worth keeping so the
// user can correct a value and resubmit.
func recoverable(err error) bool {
	var verr *orders.ValidationError
	var cerr *orders.ConflictError
	return errors.As(err, &verr) || errors.As(err, &cerr)
}

func (d *Dispatcher) loc() *time.Location {
	if d.Loc != nil {
		return d.Loc
	}
	return time.UTC
}

// parseTime accepts RFC3339 or local wall-clock "2006-01-02 15:04",
// interpreted in the display timezone. Returns UTC.
func (d *Dispatcher) parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, v, d.loc()); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", v)
}
