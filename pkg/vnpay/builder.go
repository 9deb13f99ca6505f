package vnpay

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyOrderRef = errors.New("order reference is required")
	ErrInvalidAmount = errors.New("amount must be positive")
)

// PaymentRequest describes one redirect payment attempt.
type PaymentRequest struct {
	OrderRef  string
	Amount    decimal.Decimal // major units (VND)
	OrderInfo string
	OrderType string
	Locale    string
	ClientIP  string
	BankCode  string
	// ReturnURL overrides Config.ReturnURL when set.
	ReturnURL string
	// CreatedAt stamps vnp_CreateDate; the configured clock is used when zero.
	CreatedAt time.Time
}

// Builder assembles signed payment URLs.
type Builder struct {
	cfg Config
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// ToSmallestUnit converts a VND amount to the provider's integer unit (x100).
func ToSmallestUnit(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromSmallestUnit converts the provider's integer amount back to VND.
func FromSmallestUnit(raw string) (decimal.Decimal, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid provider amount %q: %w", raw, err)
	}
	return decimal.NewFromInt(n).Div(decimal.NewFromInt(100)), nil
}

// TruncateRef caps ref to MaxTxnRefLength characters.
func TruncateRef(ref string) string {
	runes := []rune(ref)
	if len(runes) <= MaxTxnRefLength {
		return ref
	}
	return string(runes[:MaxTxnRefLength])
}

// AttemptRef returns the transaction reference for the given attempt at
// paying orderRef. The first attempt uses orderRef itself; later ones append
// "-<attempt>", trimming orderRef so the result fits MaxTxnRefLength.
func AttemptRef(orderRef string, attempt int) string {
	if attempt <= 1 {
		return TruncateRef(orderRef)
	}
	suffix := "-" + strconv.Itoa(attempt)
	runes := []rune(orderRef)
	if keep := MaxTxnRefLength - len(suffix); len(runes) > keep {
		runes = runes[:keep]
	}
	return string(runes) + suffix
}

// Params returns the unsigned parameter set for req.
func (b *Builder) Params(req PaymentRequest) (Params, error) {
	if strings.TrimSpace(req.OrderRef) == "" {
		return nil, ErrEmptyOrderRef
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	created := req.CreatedAt
	if created.IsZero() {
		created = b.cfg.now()
	}

	ref := TruncateRef(req.OrderRef)
	params := Params{
		"vnp_Version":    Version,
		"vnp_Command":    CommandPay,
		"vnp_TmnCode":    b.cfg.TmnCode,
		"vnp_Locale":     orDefault(req.Locale, DefaultLocale),
		"vnp_CurrCode":   CurrencyVND,
		"vnp_TxnRef":     ref,
		"vnp_OrderInfo":  orDefault(req.OrderInfo, "Thanh toan don hang #"+ref),
		"vnp_OrderType":  orDefault(req.OrderType, DefaultOrderType),
		"vnp_Amount":     strconv.FormatInt(ToSmallestUnit(req.Amount), 10),
		"vnp_ReturnUrl":  orDefault(req.ReturnURL, b.cfg.ReturnURL),
		"vnp_IpAddr":     orDefault(req.ClientIP, DefaultClientIP),
		"vnp_CreateDate": FormatDate(created, b.cfg.location()),
	}
	if req.BankCode != "" {
		params["vnp_BankCode"] = req.BankCode
	}
	return params, nil
}

// Now reads the builder's clock.
func (b *Builder) Now() time.Time {
	return b.cfg.now()
}

// CreateDate renders t the way vnp_CreateDate carries it.
func (b *Builder) CreateDate(t time.Time) string {
	return FormatDate(t, b.cfg.location())
}

// Build returns the provider redirect URL for req, signature last.
func (b *Builder) Build(req PaymentRequest) (string, error) {
	params, err := b.Params(req)
	if err != nil {
		return "", err
	}
	query := Canonicalize(params)
	signature := Sign(params, b.cfg.HashSecret)

	sep := "?"
	if strings.Contains(b.cfg.PayURL, "?") {
		sep = "&"
	}
	return b.cfg.PayURL + sep + query + "&" + FieldSecureHash + "=" + signature, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
