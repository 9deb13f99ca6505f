package vnpay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultQueryTimeout = 15 * time.Second

// QueryClient calls the provider's merchant web API.
type QueryClient struct {
	cfg     Config
	timeout time.Duration
}

func NewQueryClient(cfg Config) *QueryClient {
	return &QueryClient{cfg: cfg, timeout: defaultQueryTimeout}
}

// QueryTransaction asks the provider for the status of txnRef. transactionDate
// is the vnp_CreateDate of the original payment request. The decoded JSON
// response is returned as-is.
func (q *QueryClient) QueryTransaction(ctx context.Context, txnRef, transactionDate, clientIP string) (map[string]interface{}, error) {
	if q.cfg.APIURL == "" {
		return nil, errors.New("provider API URL is not configured")
	}
	params := Params{
		"vnp_RequestId":       uuid.New().String(),
		"vnp_Version":         Version,
		"vnp_Command":         CommandQuery,
		"vnp_TmnCode":         q.cfg.TmnCode,
		"vnp_TxnRef":          TruncateRef(txnRef),
		"vnp_OrderInfo":       "Truy van giao dich " + txnRef,
		"vnp_TransactionDate": transactionDate,
		"vnp_CreateDate":      FormatDate(q.cfg.now(), q.cfg.location()),
		"vnp_IpAddr":          orDefault(clientIP, DefaultClientIP),
	}
	params[FieldSecureHash] = Sign(params, q.cfg.HashSecret)

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	for k, v := range params {
		args.Set(k, v)
	}

	timeout := q.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agent := fiber.Post(q.cfg.APIURL).Form(args).Timeout(timeout)
	var out map[string]interface{}
	code, body, errs := agent.Struct(&out)
	if len(errs) > 0 {
		return nil, fmt.Errorf("querydr request failed: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return nil, fmt.Errorf("querydr returned status %d: %s", code, string(body))
	}
	return out, nil
}
