// Package mail sends receipts and donation confirmations over SMTP.  Sale
// receipts carry a QR code of the sale reference that door staff can scan.
package mail

import (
	"bytes"
	"embed"
	"html/template"
	"image/png"
	"io"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
	"gopkg.in/gomail.v2"

	"github.com/iliyamo/festival-boxoffice/internal/config"
	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const qrName = "ticket-qr.png"

// Donation is the content of a donation confirmation.
type Donation struct {
	Festival string
	Email    string
	Amount   decimal.Decimal
}

// Mailer renders and sends messages.  Without SMTP settings it logs and
// drops every message.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	log    logger.Logger
}

// New returns a Mailer for the given relay.
func New(cfg config.SMTPConfig, log logger.Logger) *Mailer {
	m := &Mailer{from: cfg.From, log: log}
	if cfg.Enabled() {
		m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return m
}

type receiptView struct {
	model.Receipt
	QR string
}

// RenderReceipt returns the HTML body of a receipt.  withQR adds the inline
// QR image reference.
func RenderReceipt(r model.Receipt, withQR bool) (string, error) {
	v := receiptView{Receipt: r}
	if withQR {
		v.QR = qrName
	}
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, "receipt.html", v); err != nil {
		return "", err
	}
	return body.String(), nil
}

// RenderDonation returns the HTML body of a donation confirmation.
func RenderDonation(d Donation) (string, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, "donation.html", d); err != nil {
		return "", err
	}
	return body.String(), nil
}

// QRCode encodes content as a PNG of size x size pixels.
func QRCode(content string, size int) ([]byte, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(size)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SendReceipt mails a receipt to its customer.  Sale receipts embed a QR
// code; pdf, when given, is attached.
func (m *Mailer) SendReceipt(r model.Receipt, pdf []byte) error {
	withQR := r.Kind == model.ReceiptSale
	body, err := RenderReceipt(r, withQR)
	if err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", r.Customer)
	msg.SetHeader("Subject", r.Festival+" "+r.Kind+" receipt "+r.Reference)
	msg.SetBody("text/html", body)
	if withQR {
		png, err := QRCode(r.Reference, 256)
		if err != nil {
			return err
		}
		msg.Embed(qrName, gomail.SetCopyFunc(writeBytes(png)))
	}
	if len(pdf) > 0 {
		msg.Attach("receipt-"+r.Reference+".pdf", gomail.SetCopyFunc(writeBytes(pdf)))
	}
	return m.send(msg, r.Customer)
}

// SendDonation mails a donation confirmation.
func (m *Mailer) SendDonation(d Donation) error {
	body, err := RenderDonation(d)
	if err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", d.Email)
	msg.SetHeader("Subject", "Thank you for your donation to "+d.Festival)
	msg.SetBody("text/html", body)
	return m.send(msg, d.Email)
}

func (m *Mailer) send(msg *gomail.Message, to string) error {
	if m.dialer == nil {
		m.log.Warn("smtp not configured, mail dropped", "to", to)
		return nil
	}
	return m.dialer.DialAndSend(msg)
}

func writeBytes(b []byte) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := w.Write(b)
		return err
	}
}
