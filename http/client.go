package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	x402 "github.com/x402-foundation/x402-fetch"
)

// maxChallengeBody bounds how much of a 402 body is read looking for v1 requirements
const maxChallengeBody = 1 << 20

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PaymentClient runs the challenge-retry state machine for one request at a time.
// A PaymentClient holds no per-call state and may be used concurrently.
type PaymentClient struct {
	doer       Doer
	authorizer x402.Authorizer
	policy     x402.Policy
	observer   x402.Observer
	now        func() time.Time
	newCallID  func() string
}

// ClientOption configures a PaymentClient
type ClientOption func(*PaymentClient)

// WithHTTPClient sets the client used for both the original and the paid request
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *PaymentClient) {
		if client != nil {
			c.doer = client
		}
	}
}

// WithDoer sets an arbitrary request sender
func WithDoer(doer Doer) ClientOption {
	return func(c *PaymentClient) {
		if doer != nil {
			c.doer = doer
		}
	}
}

// WithObserver registers the observer notified of every state transition
func WithObserver(observer x402.Observer) ClientOption {
	return func(c *PaymentClient) {
		if observer != nil {
			c.observer = observer
		}
	}
}

// WithClock overrides the time source used for expiry checks and event timestamps
func WithClock(now func() time.Time) ClientOption {
	return func(c *PaymentClient) {
		c.now = now
	}
}

// WithCallIDGenerator overrides how call IDs are produced
func WithCallIDGenerator(gen func() string) ClientOption {
	return func(c *PaymentClient) {
		c.newCallID = gen
	}
}

// NewPaymentClient creates a challenge-retry client
func NewPaymentClient(authorizer x402.Authorizer, policy x402.Policy, opts ...ClientOption) *PaymentClient {
	c := &PaymentClient{
		doer:       &http.Client{Timeout: DefaultTimeout},
		authorizer: authorizer,
		policy:     policy,
		observer:   x402.NopObserver{},
		now:        time.Now,
		newCallID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the payment policy in effect
func (c *PaymentClient) Policy() x402.Policy {
	return c.policy
}

// Authorizer returns the signing identity payments are made with
func (c *PaymentClient) Authorizer() x402.Authorizer {
	return c.authorizer
}

// Outcome is the result of one logical call.
// Response is the final response; its body is open and owned by the caller.
type Outcome struct {
	CallID        string
	Response      *http.Response
	PaymentMade   bool
	Authorization *x402.PaymentAuthorization
	Receipt       *x402.SettlementReceipt

	// SettlementErr is a MalformedSettlement error. The content was still delivered.
	SettlementErr error
}

// call carries the per-call state of the machine
type call struct {
	id      string
	method  string
	url     string
	started time.Time
}

// Do performs req, paying at most once if the server answers with a payment challenge.
// The request body is buffered so that the paid retry carries the same bytes.
func (c *PaymentClient) Do(req *http.Request) (*Outcome, error) {
	ctx := req.Context()
	cl := &call{
		id:      c.newCallID(),
		method:  req.Method,
		url:     req.URL.String(),
		started: c.now(),
	}
	c.emit(ctx, cl, x402.Event{State: x402.StateInitial})

	body, err := readBody(req)
	if err != nil {
		return nil, c.fail(ctx, cl, x402.Event{}, x402.WrapPaymentError(x402.ErrCodeTransportFailure, "failed to read request body", err))
	}

	resp, err := c.send(req, body, nil)
	if err != nil {
		return nil, c.fail(ctx, cl, x402.Event{}, x402.WrapPaymentError(x402.ErrCodeTransportFailure, "request failed", err))
	}
	c.emit(ctx, cl, x402.Event{State: x402.StateRequested, Status: resp.StatusCode})

	if resp.StatusCode != http.StatusPaymentRequired {
		c.emit(ctx, cl, x402.Event{State: x402.StateCompleted, Status: resp.StatusCode})
		return &Outcome{CallID: cl.id, Response: resp}, nil
	}

	challengeBody, err := io.ReadAll(io.LimitReader(resp.Body, maxChallengeBody))
	resp.Body.Close()
	if err != nil {
		return nil, c.fail(ctx, cl, x402.Event{Status: resp.StatusCode}, x402.WrapPaymentError(x402.ErrCodeTransportFailure, "failed to read 402 response body", err))
	}

	challenge, err := DecodeChallenge(resp.StatusCode, resp.Header, challengeBody, c.now())
	if err != nil {
		return nil, c.fail(ctx, cl, x402.Event{Status: resp.StatusCode}, err)
	}
	scheme := c.authorizer.Scheme()
	requirement := challenge.Select(scheme, c.policy.Matches)
	c.emit(ctx, cl, x402.Event{State: x402.StateChallengeDetected, Status: resp.StatusCode, Requirement: &requirement})

	decision, rejected := x402.RejectScheme(requirement, scheme)
	if !rejected {
		decision = c.policy.Decide(requirement, c.now())
	}
	if !decision.Accepted {
		return nil, c.fail(ctx, cl, x402.Event{Status: resp.StatusCode, Requirement: &requirement, Decision: &decision}, decision.Err())
	}
	c.emit(ctx, cl, x402.Event{State: x402.StateAuthorizing, Requirement: &requirement, Decision: &decision})

	auth, err := c.authorizer.Authorize(ctx, requirement, decision.Amount)
	if err != nil {
		if x402.ErrorCode(err) == "" {
			err = x402.WrapPaymentError(x402.ErrCodeSigningFailure, "authorization failed", err)
		}
		return nil, c.fail(ctx, cl, x402.Event{Requirement: &requirement, Decision: &decision}, err)
	}
	envelope, err := EncodeEnvelope(auth)
	if err != nil {
		return nil, c.fail(ctx, cl, x402.Event{Requirement: &requirement, Decision: &decision}, x402.WrapPaymentError(x402.ErrCodeSigningFailure, "failed to encode payment envelope", err))
	}

	paid, err := c.send(req, body, &envelope)
	if err != nil {
		return nil, c.fail(ctx, cl, x402.Event{Requirement: &requirement, Authorization: auth}, x402.WrapPaymentError(x402.ErrCodeTransportFailure, "paid request failed", err))
	}
	c.emit(ctx, cl, x402.Event{State: x402.StateRetried, Status: paid.StatusCode, Requirement: &requirement, Authorization: auth})

	if paid.StatusCode == http.StatusPaymentRequired {
		paid.Body.Close()
		return nil, c.fail(ctx, cl, x402.Event{Status: paid.StatusCode, Requirement: &requirement, Authorization: auth},
			x402.NewPaymentError(x402.ErrCodeDoublePaymentChallenge, "server issued a second payment challenge after payment was sent", map[string]interface{}{
				"nonce": auth.Nonce,
			}))
	}

	outcome := &Outcome{
		CallID:        cl.id,
		Response:      paid,
		PaymentMade:   true,
		Authorization: auth,
	}
	outcome.Receipt, outcome.SettlementErr = DecodeSettlement(paid.Header, auth)
	c.emit(ctx, cl, x402.Event{
		State:         x402.StateCompleted,
		Status:        paid.StatusCode,
		Requirement:   &requirement,
		Authorization: auth,
		Receipt:       outcome.Receipt,
		Err:           outcome.SettlementErr,
	})
	return outcome, nil
}

// send issues a fresh copy of req with the buffered body and optional payment header
func (c *PaymentClient) send(req *http.Request, body []byte, envelope *x402.PaymentEnvelope) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.RequestURI = ""
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		out.ContentLength = int64(len(body))
	}
	if envelope != nil {
		out.Header.Set(envelope.Header, envelope.Value)
	}
	return c.doer.Do(out)
}

func (c *PaymentClient) emit(ctx context.Context, cl *call, event x402.Event) {
	now := c.now()
	event.CallID = cl.id
	event.Method = cl.method
	event.URL = cl.url
	event.Timestamp = now
	event.Duration = now.Sub(cl.started)
	c.observer.Observe(ctx, event)
}

func (c *PaymentClient) fail(ctx context.Context, cl *call, event x402.Event, err error) error {
	event.State = x402.StateFailed
	event.Err = err
	c.emit(ctx, cl, event)
	return err
}

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

// ============================================================================
// http.RoundTripper adapter
// ============================================================================

// PaymentRoundTripper implements http.RoundTripper with x402 payment handling.
// Settlement problems are reported to the client's observer only.
type PaymentRoundTripper struct {
	client *PaymentClient
}

// RoundTrip implements http.RoundTripper
func (t *PaymentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	outcome, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	return outcome.Response, nil
}

// transportDoer sends requests through a bare RoundTripper
type transportDoer struct {
	transport http.RoundTripper
}

func (d transportDoer) Do(req *http.Request) (*http.Response, error) {
	return d.transport.RoundTrip(req)
}

// WrapHTTPClientWithPayment returns a copy of client whose transport pays x402 challenges.
// The original client is not modified.
func WrapHTTPClientWithPayment(client *http.Client, authorizer x402.Authorizer, policy x402.Policy, opts ...ClientOption) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}

	originalTransport := client.Transport
	if originalTransport == nil {
		originalTransport = http.DefaultTransport
	}

	opts = append(opts, WithDoer(transportDoer{transport: originalTransport}))
	wrapped := *client
	wrapped.Transport = &PaymentRoundTripper{
		client: NewPaymentClient(authorizer, policy, opts...),
	}
	return &wrapped
}
