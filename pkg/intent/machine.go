package intent

import (
	"errors"
	"io"
	"math/big"
	"time"

	"near-intents/pkg/quote"
	"near-intents/pkg/relay"
)

// State of one intent lifecycle
type State int

const (
	StateIdle State = iota
	StateSigning
	StateVerifyingSignature
	StateVerifyingPublicKeyPresence
	StateVerifyingIntentRelevance
	StateBroadcastingIntent
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSigning:
		return "Signing"
	case StateVerifyingSignature:
		return "VerifyingSignature"
	case StateVerifyingPublicKeyPresence:
		return "VerifyingPublicKeyPresence"
	case StateVerifyingIntentRelevance:
		return "VerifyingIntentRelevance"
	case StateBroadcastingIntent:
		return "BroadcastingIntent"
	case StateCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Event is fed into Machine.Transition
type Event interface {
	isEvent()
}

// StartEvent begins the lifecycle
type StartEvent struct{}

// SignedEvent delivers the wallet's signature
type SignedEvent struct {
	Signature WalletSignature
}

// SignFailedEvent reports that the wallet did not sign
type SignFailedEvent struct {
	Err error
}

// SignatureCheckedEvent reports the outcome of VerifySignatureEffect
type SignatureCheckedEvent struct {
	Valid bool
	Err   error
}

// PublicKeyCheckedEvent reports the outcome of VerifyPublicKeyEffect. Err is an *Error.
type PublicKeyCheckedEvent struct {
	Err error
}

// NewQuoteEvent carries a refreshed quote for the trade being signed
type NewQuoteEvent struct {
	Quote quote.AggregatedQuote
}

// PublishedEvent reports that the relay accepted the intent
type PublishedEvent struct {
	IntentHash string
}

// PublishFailedEvent reports a terminal publish failure
type PublishFailedEvent struct {
	Err error
}

func (StartEvent) isEvent()            {}
func (SignedEvent) isEvent()           {}
func (SignFailedEvent) isEvent()       {}
func (SignatureCheckedEvent) isEvent() {}
func (PublicKeyCheckedEvent) isEvent() {}
func (NewQuoteEvent) isEvent()         {}
func (PublishedEvent) isEvent()        {}
func (PublishFailedEvent) isEvent()    {}

// Effect is work the machine asks its runner to do. The result comes back as an Event.
type Effect interface {
	isEffect()
}

// SignEffect asks the wallet to sign Message
type SignEffect struct {
	Message WalletMessage
}

// VerifySignatureEffect checks Signature against User
type VerifySignatureEffect struct {
	Signature WalletSignature
	User      User
}

// VerifyPublicKeyEffect makes sure the NEAR public key is registered with the contract
type VerifyPublicKeyEffect struct {
	Signature NEP413Signature
}

// PublishEffect sends the signed intent to the relay
type PublishEffect struct {
	Payload     relay.MultiPayload
	QuoteHashes []string
}

func (SignEffect) isEffect()            {}
func (VerifySignatureEffect) isEffect() {}
func (VerifyPublicKeyEffect) isEffect() {}
func (PublishEffect) isEffect()         {}

// Outcome is the terminal result of a lifecycle
type Outcome struct {
	IntentHash  string
	Description Description
	// QuoteHashes are the hashes that were actually published
	QuoteHashes []string
	Err         *Error
}

// MachineConfig carries the settings the machine needs
type MachineConfig struct {
	VerifyingContract string
	SwapTTL           time.Duration
}

// Machine is the pure lifecycle state machine. It performs no I/O: every
// external step is returned as an Effect.
type Machine struct {
	params OperationParams
	user   User
	cfg    MachineConfig
	now    func() time.Time
	random io.Reader

	state     State
	message   WalletMessage
	deltas    Deltas
	signature WalletSignature
	latest    *quote.AggregatedQuote
	outcome   Outcome
}

// NewMachine creates a machine in the Idle state
func NewMachine(params OperationParams, user User, cfg MachineConfig) *Machine {
	return &Machine{
		params: params,
		user:   user,
		cfg:    cfg,
		now:    time.Now,
		state:  StateIdle,
	}
}

// State returns the current state
func (m *Machine) State() State { return m.state }

// Done reports whether the machine reached Completed
func (m *Machine) Done() bool { return m.state == StateCompleted }

// Outcome returns the result once Done
func (m *Machine) Outcome() Outcome { return m.outcome }

// Message returns the message handed to the signer
func (m *Machine) Message() WalletMessage { return m.message }

// Transition applies ev and returns the effects to run. Events that do not
// apply to the current state are ignored.
func (m *Machine) Transition(ev Event) []Effect {
	if q, ok := ev.(NewQuoteEvent); ok {
		if !m.Done() {
			fresh := q.Quote
			m.latest = &fresh
		}
		return nil
	}

	switch m.state {
	case StateIdle:
		if _, ok := ev.(StartEvent); ok {
			return m.start()
		}

	case StateSigning:
		switch e := ev.(type) {
		case SignedEvent:
			m.signature = e.Signature
			m.state = StateVerifyingSignature
			return []Effect{VerifySignatureEffect{Signature: e.Signature, User: m.user}}
		case SignFailedEvent:
			return m.fail(&Error{Kind: KindUserDidntSign, Reason: walletCode(e.Err), Err: e.Err})
		}

	case StateVerifyingSignature:
		if e, ok := ev.(SignatureCheckedEvent); ok {
			switch {
			case e.Err != nil:
				return m.fail(&Error{Kind: KindCannotVerifySignature, Err: e.Err})
			case !e.Valid:
				return m.fail(&Error{Kind: KindSignedDifferentAccount})
			}
			if nep, ok := m.signature.(NEP413Signature); ok {
				m.state = StateVerifyingPublicKeyPresence
				return []Effect{VerifyPublicKeyEffect{Signature: nep}}
			}
			return m.checkRelevance()
		}

	case StateVerifyingPublicKeyPresence:
		if e, ok := ev.(PublicKeyCheckedEvent); ok {
			if e.Err != nil {
				return m.fail(asError(e.Err, KindPubkeyCheckFailed))
			}
			return m.checkRelevance()
		}

	case StateBroadcastingIntent:
		switch e := ev.(type) {
		case PublishedEvent:
			m.outcome.IntentHash = e.IntentHash
			m.outcome.Description = describe(m.params, m.deltas)
			m.state = StateCompleted
			return nil
		case PublishFailedEvent:
			return m.fail(asError(e.Err, KindCannotPublishIntent))
		}
	}
	return nil
}

func (m *Machine) start() []Effect {
	intents, deltas := buildIntents(m.params)
	m.deltas = deltas

	signerID, err := SignerID(m.user)
	if err != nil {
		return m.fail(&Error{Kind: KindCannotBuildMessage, Err: err})
	}
	msg, err := NewWalletMessage(signerID, m.cfg.VerifyingContract, deadline(m.params, m.now(), m.cfg.SwapTTL), intents, m.random)
	if err != nil {
		return m.fail(&Error{Kind: KindCannotBuildMessage, Err: err})
	}
	m.message = msg
	m.state = StateSigning
	return []Effect{SignEffect{Message: msg}}
}

// checkRelevance decides whether the signed trade may still be broadcast.
// Nothing is published once the signed deadline has passed. A fresh quote
// replaces the signed one only while it is unexpired, spends exactly the
// signed amounts and returns at least as much.
func (m *Machine) checkRelevance() []Effect {
	m.state = StateVerifyingIntentRelevance
	now := m.now()

	signed, err := time.Parse(deadlineLayout, m.message.Message.Deadline)
	if err != nil {
		return m.fail(&Error{Kind: KindCannotPublishIntent, Err: err})
	}
	if !signed.After(now) {
		return m.fail(&Error{Kind: KindQuoteExpiredReturnLower, Reason: "signed deadline passed"})
	}

	main := mainQuote(m.params)
	storage := storageQuote(m.params)

	if storage != nil && storage.Expired(now) {
		return m.fail(&Error{Kind: KindQuoteExpiredReturnLower, Reason: "storage deposit quote expired"})
	}
	if main != nil {
		switch {
		case m.latest != nil && replaces(*m.latest, *main, now):
			main = m.latest
		case main.Expired(now):
			return m.fail(&Error{Kind: KindQuoteExpiredReturnLower})
		}
	}

	payload, err := ToMultiPayload(m.signature, m.user)
	if err != nil {
		return m.fail(&Error{Kind: KindCannotPublishIntent, Err: err})
	}
	hashes := quoteHashes(main, storage)
	m.outcome.QuoteHashes = hashes
	m.state = StateBroadcastingIntent
	return []Effect{PublishEffect{Payload: payload, QuoteHashes: hashes}}
}

// replaces reports whether fresh can stand in for the signed quote
func replaces(fresh, signed quote.AggregatedQuote, now time.Time) bool {
	if fresh.IsEmpty() || fresh.Expired(now) || fresh.TotalAmountOut == nil || signed.TotalAmountOut == nil {
		return false
	}
	if fresh.TotalAmountOut.Cmp(signed.TotalAmountOut) < 0 {
		return false
	}
	return sameAmounts(fresh.AmountsIn, signed.AmountsIn)
}

func sameAmounts(a, b map[string]*big.Int) bool {
	if len(a) != len(b) {
		return false
	}
	for id, v := range a {
		w, ok := b[id]
		if !ok || v == nil || w == nil || v.Cmp(w) != 0 {
			return false
		}
	}
	return true
}

func (m *Machine) fail(err *Error) []Effect {
	m.outcome.Err = err
	m.state = StateCompleted
	return nil
}

func asError(err error, fallback Kind) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: fallback, Err: err}
}

func walletCode(err error) string {
	var we *WalletError
	if errors.As(err, &we) {
		return we.Code
	}
	return WalletCodeUnknown
}
