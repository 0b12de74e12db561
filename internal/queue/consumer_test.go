package queue

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/mail"
	"github.com/iliyamo/festival-boxoffice/internal/model"
)

type fakeSender struct {
	receipts  []model.Receipt
	pdfs      [][]byte
	donations []mail.Donation
}

func (f *fakeSender) SendReceipt(r model.Receipt, pdf []byte) error {
	f.receipts = append(f.receipts, r)
	f.pdfs = append(f.pdfs, pdf)
	return nil
}

func (f *fakeSender) SendDonation(d mail.Donation) error {
	f.donations = append(f.donations, d)
	return nil
}

func marshal(t *testing.T, ev Event) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandleReceipt(t *testing.T) {
	s := &fakeSender{}
	c := NewConsumer("", s, logger.Nop())
	r := model.Receipt{Kind: model.ReceiptRefund, Festival: "Theatrefest", Reference: "r-1",
		Customer: "ann@example.test", Total: decimal.NewFromInt(5), Date: time.Now()}

	ev := ReceiptEvent(r)
	if ev.Type != EventRefundCompleted {
		t.Fatalf("type = %s", ev.Type)
	}
	if err := c.Handle(marshal(t, ev)); err != nil {
		t.Fatal(err)
	}
	if len(s.receipts) != 1 || s.receipts[0].Reference != "r-1" {
		t.Fatalf("receipts = %+v", s.receipts)
	}
	if !bytes.HasPrefix(s.pdfs[0], []byte("%PDF")) {
		t.Error("receipt sent without pdf")
	}
}

func TestHandleDonation(t *testing.T) {
	s := &fakeSender{}
	c := NewConsumer("", s, logger.Nop())
	ev := DonationReceived(DonationEvent{Festival: "Theatrefest", Email: "bob@example.test", Amount: decimal.NewFromInt(20), TransactionID: "pi_1"})
	if err := c.Handle(marshal(t, ev)); err != nil {
		t.Fatal(err)
	}
	if len(s.donations) != 1 || !s.donations[0].Amount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("donations = %+v", s.donations)
	}
}

func TestHandleRejectsBadMessages(t *testing.T) {
	c := NewConsumer("", &fakeSender{}, logger.Nop())
	for name, body := range map[string][]byte{
		"not json":        []byte("{"),
		"unknown type":    []byte(`{"type":"x"}`),
		"missing receipt": []byte(`{"type":"sale.completed"}`),
	} {
		if err := c.Handle(body); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
