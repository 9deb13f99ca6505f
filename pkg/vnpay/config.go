package vnpay

import "time"

const (
	Version          = "2.1.0"
	CommandPay       = "pay"
	CommandQuery     = "querydr"
	CurrencyVND      = "VND"
	DefaultLocale    = "vn"
	DefaultOrderType = "other"
	DefaultClientIP  = "127.0.0.1"

	// MaxTxnRefLength is the longest vnp_TxnRef the provider accepts.
	MaxTxnRefLength = 100

	dateLayout = "20060102150405"
)

// Indochina is the fixed UTC+7 zone the provider expects timestamps in.
var Indochina = time.FixedZone("ICT", 7*60*60)

// Config holds merchant credentials and provider endpoints.
type Config struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	APIURL     string
	ReturnURL  string

	// Location used for vnp_CreateDate. Defaults to Indochina.
	Location *time.Location
	// Now is the clock used for timestamps. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return Indochina
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// FormatDate renders t as yyyyMMddHHmmss in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = Indochina
	}
	return t.In(loc).Format(dateLayout)
}
