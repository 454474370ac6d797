package chain

import (
	"errors"
	"fmt"
)

// PaymentErrorCode 支付错误类型
type PaymentErrorCode string

const (
	CodeSignatureRejected PaymentErrorCode = "signature_rejected"
	CodeInsufficientFunds PaymentErrorCode = "insufficient_funds"
	CodeAddressMismatch   PaymentErrorCode = "address_mismatch"
	CodeRecipientMismatch PaymentErrorCode = "recipient_mismatch"
	CodeAmountMismatch    PaymentErrorCode = "amount_mismatch"
	CodeTxFailed          PaymentErrorCode = "tx_failed"
	CodeInvalidAddress    PaymentErrorCode = "invalid_address"
)

// PaymentError 链上支付错误，与反欺诈拒绝是两类错误
type PaymentError struct {
	Code     PaymentErrorCode
	Message  string
	Expected string
	Actual   string
	Err      error
}

func (e *PaymentError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Expected != "" || e.Actual != "" {
		msg += fmt.Sprintf(" (expected %s, got %s)", e.Expected, e.Actual)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// Reconnect 连接的钱包与记录不一致时需要前端提示重新连接
func (e *PaymentError) Reconnect() bool {
	return e.Code == CodeAddressMismatch
}

// AsPaymentError 提取 PaymentError
func AsPaymentError(err error) (*PaymentError, bool) {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func newPaymentError(code PaymentErrorCode, msg string) *PaymentError {
	return &PaymentError{Code: code, Message: msg}
}

func mismatch(code PaymentErrorCode, msg, expected, actual string) *PaymentError {
	return &PaymentError{Code: code, Message: msg, Expected: expected, Actual: actual}
}
