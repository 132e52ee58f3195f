package wa

import (
	"context"
	"fmt"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// LoginWithQR runs the QR pairing flow. It renders each pairing code to the
// terminal and blocks until the phone scans one, the codes run out, or ctx is
// cancelled. The QR channel must be obtained before Connect.
func (a *Adapter) LoginWithQR(ctx context.Context) error {
	if a.IsLoggedIn() {
		return a.Connect()
	}

	qrChan, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get QR channel: %w", err)
	}
	if err := a.client.Connect(); err != nil {
		return fmt.Errorf("connect for pairing: %w", err)
	}

	for item := range qrChan {
		switch item.Event {
		case "code":
			if err := printQR(item.Code); err != nil {
				a.log.Warn("failed to render QR code", zap.Error(err))
				fmt.Println("Pairing code:", item.Code)
			}
			fmt.Println("Scan the QR code with WhatsApp on your phone (Linked Devices).")
		case "success":
			a.log.Info("pairing complete", zap.String("phone", a.PhoneNumber()))
			return nil
		case "timeout":
			return fmt.Errorf("pairing timed out before the code was scanned")
		default:
			a.log.Debug("pairing event", zap.String("event", item.Event))
		}
	}
	return ctx.Err()
}

func printQR(code string) error {
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return err
	}
	fmt.Println(qr.ToSmallString(false))
	return nil
}
