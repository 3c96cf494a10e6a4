package payment

import (
	"fmt"

	"github.com/skip2/go-qrcode"

	"keyflow-bot/internal/config"
)

// Instructions builds the manual SBP transfer details shown to a customer
// after their order is created. The comment ties the incoming transfer back
// to the order; payment itself is confirmed by an operator, never verified
// automatically.
type Instructions struct {
	cfg config.PaymentConfig
}

func NewInstructions(cfg config.PaymentConfig) *Instructions {
	return &Instructions{cfg: cfg}
}

func (i *Instructions) Text(orderID int64, amount int64, comment string) string {
	if comment == "" {
		comment = fmt.Sprintf("#%d", orderID)
	}
	return fmt.Sprintf(
		"Order #%d created!\n\n"+
			"Transfer %d RUB via SBP:\n%s (%s)\n"+
			"Recipient: %s\n\n"+
			"Payment comment: %s\n\n"+
			"After the transfer, tap \"I paid\" in the shop.",
		orderID, amount, i.cfg.SBPPhone, i.cfg.SBPBank, i.cfg.SBPRecipient, comment,
	)
}

// QR renders a PNG QR code with the transfer details so the customer can
// scan instead of retyping the phone number.
func (i *Instructions) QR(orderID int64, amount int64) ([]byte, error) {
	payload := fmt.Sprintf("SBP|%s|%s|%d|#%d", i.cfg.SBPPhone, i.cfg.SBPBank, amount, orderID)
	return qrcode.Encode(payload, qrcode.Medium, 256)
}
