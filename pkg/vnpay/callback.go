package vnpay

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	ResponseSuccess   = "00"
	ResponseCancelled = "24"
)

var responseMessages = map[string]string{
	"07": "amount debited, transaction flagged as suspicious",
	"09": "card or account not registered for internet banking",
	"10": "card or account authentication failed too many times",
	"11": "payment window expired",
	"12": "card or account locked",
	"13": "wrong one-time password",
	"24": "customer cancelled the transaction",
	"51": "insufficient balance",
	"65": "daily transaction limit exceeded",
	"75": "bank under maintenance",
	"79": "wrong payment password too many times",
}

// Outcome is the normalized result of a provider callback. Business fields
// are only populated when Valid is true.
type Outcome struct {
	Valid             bool
	Success           bool
	TxnRef            string
	Amount            decimal.Decimal
	RawAmount         string
	TransactionNo     string
	BankCode          string
	PayDate           string
	ResponseCode      string
	TransactionStatus string
	Message           string
}

// Verifier checks callback signatures with the merchant hash secret.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify validates raw and interprets it. raw is not modified.
func (v *Verifier) Verify(raw Params) Outcome {
	signature := raw[FieldSecureHash]
	params := withoutSignature(raw)

	if !Verify(params, signature, v.secret) {
		return Outcome{Message: "invalid signature"}
	}

	responseCode := params["vnp_ResponseCode"]
	transactionStatus, hasStatus := params["vnp_TransactionStatus"]
	success := responseCode == ResponseSuccess &&
		(!hasStatus || transactionStatus == "" || transactionStatus == ResponseSuccess)

	out := Outcome{
		Valid:             true,
		Success:           success,
		TxnRef:            params["vnp_TxnRef"],
		RawAmount:         params["vnp_Amount"],
		TransactionNo:     params["vnp_TransactionNo"],
		BankCode:          params["vnp_BankCode"],
		PayDate:           params["vnp_PayDate"],
		ResponseCode:      responseCode,
		TransactionStatus: transactionStatus,
		Message:           ResponseMessage(responseCode),
	}
	if amount, err := FromSmallestUnit(out.RawAmount); err == nil {
		out.Amount = amount
	}
	return out
}

// ResponseMessage returns a human readable description of a response code.
func ResponseMessage(code string) string {
	if code == ResponseSuccess {
		return "transaction successful"
	}
	if msg, ok := responseMessages[code]; ok {
		return fmt.Sprintf("transaction failed: %s (code %s)", msg, code)
	}
	return fmt.Sprintf("transaction failed (code %s)", code)
}
