package intent

import "fmt"

// Kind tags a terminal lifecycle failure
type Kind string

const (
	KindUserDidntSign           Kind = "ERR_USER_DIDNT_SIGN"
	KindCannotVerifySignature   Kind = "ERR_CANNOT_VERIFY_SIGNATURE"
	KindSignedDifferentAccount  Kind = "ERR_SIGNED_DIFFERENT_ACCOUNT"
	KindPubkeyCheckFailed       Kind = "ERR_PUBKEY_CHECK_FAILED"
	KindPubkeyAddingFailed      Kind = "ERR_PUBKEY_ADDING_FAILED"
	KindQuoteExpiredReturnLower Kind = "ERR_QUOTE_EXPIRED_RETURN_IS_LOWER"
	KindCannotPublishIntent     Kind = "ERR_CANNOT_PUBLISH_INTENT"
	KindCannotBuildMessage      Kind = "ERR_CANNOT_BUILD_MESSAGE"
)

// Error is the terminal error of one intent lifecycle
type Error struct {
	Kind Kind
	// Reason carries the wallet error code or the relay's failure reason
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// WalletError is returned by signers when the wallet refuses or fails to sign
type WalletError struct {
	Code string
	Err  error
}

func (e *WalletError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wallet error %s: %v", e.Code, e.Err)
	}
	return "wallet error " + e.Code
}

func (e *WalletError) Unwrap() error { return e.Err }

// Wallet error codes used by the local signers
const (
	WalletCodeRejected    = "USER_REJECTED"
	WalletCodeUnsupported = "UNSUPPORTED_MESSAGE"
	WalletCodeUnknown     = "UNKNOWN"
)
