package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"bookstore/internal/models"
)

type statusInfo struct {
	Emoji string
	Text  string
	Color string
}

var statusInfos = map[models.OrderStatus]statusInfo{
	models.OrderPending:    {"⏳", "Đang chờ xử lý", "#fbbf24"},
	models.OrderPaid:       {"✅", "Đã thanh toán", "#10b981"},
	models.OrderProcessing: {"🔄", "Đang xử lý", "#3b82f6"},
	models.OrderShipped:    {"🚚", "Đã giao hàng", "#8b5cf6"},
	models.OrderDelivered:  {"📦", "Đã nhận hàng", "#10b981"},
	models.OrderCancelled:  {"❌", "Đã hủy", "#ef4444"},
}

func infoFor(status models.OrderStatus) statusInfo {
	if info, ok := statusInfos[status]; ok {
		return info
	}
	return statusInfo{"📋", string(status), "#6b7280"}
}

var orderStatusTemplate = template.Must(template.New("order_status").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; background: #f5f5f5; padding: 20px;">
  <div style="max-width: 600px; margin: 0 auto; background: #fff; border-radius: 15px;">
    <div style="padding: 40px; text-align: center;">
      <div style="font-size: 50px;">{{.Info.Emoji}}</div>
      <h1>Cập nhật đơn hàng</h1>
    </div>
    <div style="padding: 40px 30px;">
      <h2>Xin chào {{.Fullname}}!</h2>
      <p>Đơn hàng của bạn đã được cập nhật trạng thái:</p>
      <div style="border-left: 4px solid {{.Info.Color}}; padding: 20px;">
        <h3 style="color: {{.Info.Color}};">{{.Info.Emoji}} {{.Info.Text}}</h3>
      </div>
      <p><strong>Mã đơn hàng:</strong> #{{.ShortID}}</p>
      <p><strong>Ngày đặt hàng:</strong> {{.OrderDate}}</p>
      <p><strong>Trạng thái mới:</strong> {{.Info.Text}}</p>
      {{if .HistoryURL}}<p>Bạn có thể theo dõi đơn hàng của mình tại trang <a href="{{.HistoryURL}}">Lịch sử đơn hàng</a>.</p>{{end}}
    </div>
    <div style="padding: 20px; text-align: center; color: #666; font-size: 12px;">BookStore Team</div>
  </div>
</body>
</html>`))

// OrderStatusEmail is the data rendered into a status change email.
type OrderStatusEmail struct {
	Fullname   string
	OrderID    string
	Status     models.OrderStatus
	OrderDate  time.Time
	HistoryURL string
}

// Render returns the subject and HTML body of the email.
func (e OrderStatusEmail) Render() (string, string, error) {
	info := infoFor(e.Status)
	shortID := e.OrderID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	var buf bytes.Buffer
	err := orderStatusTemplate.Execute(&buf, struct {
		Fullname   string
		ShortID    string
		OrderDate  string
		HistoryURL string
		Info       statusInfo
	}{
		Fullname:   e.Fullname,
		ShortID:    shortID,
		OrderDate:  e.OrderDate.In(orderDateZone).Format("02/01/2006 15:04"),
		HistoryURL: e.HistoryURL,
		Info:       info,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to render order status email: %w", err)
	}
	subject := fmt.Sprintf("%s Cập nhật trạng thái đơn hàng #%s", info.Emoji, shortID)
	return subject, buf.String(), nil
}

var orderDateZone = time.FixedZone("ICT", 7*60*60)
