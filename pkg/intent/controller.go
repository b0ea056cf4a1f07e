package intent

import (
	"context"
	"encoding/json"
	"fmt"

	"near-intents/pkg/logger"
	"near-intents/pkg/metrics"
	"near-intents/pkg/relay"
	"near-intents/pkg/retry"
)

// Signer asks a wallet to sign an intent message
type Signer interface {
	Sign(ctx context.Context, msg WalletMessage) (WalletSignature, error)
}

// Publisher submits signed intents to the relay
type Publisher interface {
	PublishIntent(ctx context.Context, signed relay.MultiPayload, quoteHashes []string) (relay.PublishResult, error)
}

// PublicKeyChecker reports whether a NEAR public key is registered for an account
type PublicKeyChecker interface {
	HasPublicKey(ctx context.Context, contract, accountID, publicKey string) (bool, error)
}

// Transaction is a NEAR function call sent through a Broadcaster
type Transaction struct {
	SignerID   string
	ReceiverID string
	MethodName string
	Args       json.RawMessage
	Deposit    string
}

// Broadcaster sends a transaction on the user's behalf and returns its hash
type Broadcaster interface {
	Send(ctx context.Context, tx Transaction) (string, error)
}

// Deps are the collaborators a Controller talks to. Keys and Broadcaster are
// only needed for NEP-413 signatures.
type Deps struct {
	Signer      Signer
	Publisher   Publisher
	Keys        PublicKeyChecker
	Broadcaster Broadcaster
	Log         *logger.Logger
}

// Controller runs a Machine, executing its effects and feeding results back
type Controller struct {
	machine *Machine
	deps    Deps
	retry   retry.Policy
	log     *logger.Logger

	quotes chan NewQuoteEvent
}

// NewController prepares a lifecycle for params signed by user
func NewController(params OperationParams, user User, cfg MachineConfig, publish retry.Policy, deps Deps) *Controller {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{
		machine: NewMachine(params, user, cfg),
		deps:    deps,
		retry:   publish,
		log:     log.WithField("component", "intent"),
		quotes:  make(chan NewQuoteEvent, 1),
	}
}

// UpdateQuote hands a refreshed quote to the running lifecycle. Only the latest
// one is kept.
func (c *Controller) UpdateQuote(q NewQuoteEvent) {
	for {
		select {
		case c.quotes <- q:
			return
		default:
		}
		select {
		case <-c.quotes:
		default:
		}
	}
}

// Run drives the lifecycle to completion. It returns ctx.Err() if cancelled first.
func (c *Controller) Run(ctx context.Context) (Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan Event, 4)
	apply := func(ev Event) {
		before := c.machine.State()
		effects := c.machine.Transition(ev)
		if after := c.machine.State(); after != before {
			c.log.Debugf("[Intent] %s -> %s", before, after)
		}
		for _, eff := range effects {
			go c.execute(ctx, eff, events)
		}
	}

	apply(StartEvent{})
	for !c.machine.Done() {
		select {
		case <-ctx.Done():
			metrics.IntentOutcomes.WithLabelValues("cancelled").Inc()
			return Outcome{}, ctx.Err()
		case q := <-c.quotes:
			apply(q)
		case ev := <-events:
			apply(ev)
		}
	}

	out := c.machine.Outcome()
	if out.Err != nil {
		metrics.IntentOutcomes.WithLabelValues(string(out.Err.Kind)).Inc()
		c.log.Warnf("[Intent] failed: %v", out.Err)
	} else {
		metrics.IntentOutcomes.WithLabelValues("ok").Inc()
		c.log.Infof("[Intent] published %s", out.IntentHash)
	}
	return out, nil
}

// Machine exposes the underlying state machine
func (c *Controller) Machine() *Machine { return c.machine }

func (c *Controller) execute(ctx context.Context, eff Effect, events chan<- Event) {
	var ev Event
	switch e := eff.(type) {
	case SignEffect:
		sig, err := c.deps.Signer.Sign(ctx, e.Message)
		if err != nil {
			ev = SignFailedEvent{Err: err}
		} else {
			ev = SignedEvent{Signature: sig}
		}
	case VerifySignatureEffect:
		ok, err := VerifySignature(e.Signature, e.User)
		ev = SignatureCheckedEvent{Valid: ok, Err: err}
	case VerifyPublicKeyEffect:
		ev = PublicKeyCheckedEvent{Err: c.ensurePublicKey(ctx, e.Signature)}
	case PublishEffect:
		hash, err := c.publish(ctx, e)
		if err != nil {
			ev = PublishFailedEvent{Err: err}
		} else {
			ev = PublishedEvent{IntentHash: hash}
		}
	default:
		return
	}

	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func (c *Controller) ensurePublicKey(ctx context.Context, sig NEP413Signature) error {
	contract := c.machine.cfg.VerifyingContract
	if c.deps.Keys == nil {
		return &Error{Kind: KindPubkeyCheckFailed, Reason: "no public key checker configured"}
	}
	has, err := c.deps.Keys.HasPublicKey(ctx, contract, sig.AccountID, sig.PublicKey)
	if err != nil {
		return &Error{Kind: KindPubkeyCheckFailed, Err: err}
	}
	if has {
		return nil
	}

	if c.deps.Broadcaster == nil {
		return &Error{Kind: KindPubkeyAddingFailed, Reason: "no broadcaster configured"}
	}
	args, err := json.Marshal(map[string]string{"public_key": sig.PublicKey})
	if err != nil {
		return &Error{Kind: KindPubkeyAddingFailed, Err: err}
	}
	hash, err := c.deps.Broadcaster.Send(ctx, Transaction{
		SignerID:   sig.AccountID,
		ReceiverID: contract,
		MethodName: "add_public_key",
		Args:       args,
		Deposit:    "1",
	})
	if err != nil {
		return &Error{Kind: KindPubkeyAddingFailed, Err: err}
	}
	if hash == "" {
		return &Error{Kind: KindPubkeyAddingFailed, Reason: "transaction was not sent"}
	}
	c.log.Infof("[Intent] registered public key %s for %s in tx %s", sig.PublicKey, sig.AccountID, hash)
	return nil
}

// publish sends the intent with bounded retries. A FAILED answer saying the
// intent was already processed counts as success.
func (c *Controller) publish(ctx context.Context, e PublishEffect) (string, error) {
	var hash string
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		metrics.PublishAttempts.Inc()
		res, err := c.deps.Publisher.PublishIntent(ctx, e.Payload, e.QuoteHashes)
		if err != nil {
			c.log.Warnf("[Intent] publish attempt failed: %v", err)
			return err
		}
		switch {
		case res.Status == relay.PublishOK:
			hash = res.IntentHash
			return nil
		case res.Status == relay.PublishFailed && res.Reason == relay.ReasonAlreadyProcessed:
			hash = res.IntentHash
			return nil
		case res.Status == relay.PublishFailed:
			return retry.Permanent(&Error{Kind: KindCannotPublishIntent, Reason: res.Reason})
		default:
			return retry.Permanent(&Error{Kind: KindCannotPublishIntent, Reason: fmt.Sprintf("unexpected status %q", res.Status)})
		}
	})
	if err != nil {
		return "", asError(err, KindCannotPublishIntent)
	}
	return hash, nil
}
