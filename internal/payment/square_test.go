package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/config"
)

func testTerminal() *SquareTerminal {
	return NewSquareTerminal(config.SquareConfig{
		ApplicationID: "sq0idp-app",
		CallbackURL:   "https://box.test/v1/square/callback",
		SigningKey:    "till-secret",
	})
}

// sentMetadata pulls the request metadata back out of an intent, as the POS
// app returns it on the callback.
func sentMetadata(t *testing.T, uri string) string {
	t.Helper()
	const key = "S." + SquareRequestMetadata + "="
	i := strings.Index(uri, key)
	if i < 0 {
		t.Fatalf("intent %q has no metadata", uri)
	}
	rest := uri[i+len(key):]
	raw, err := url.QueryUnescape(rest[:strings.Index(rest, ";")])
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestIntentURI(t *testing.T) {
	term := testTerminal()
	uri, err := term.IntentURI(SquareMetadata{Sale: "abc", Festival: 2}, decimal.RequireFromString("12.50"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"intent:#Intent;",
		"action=com.squareup.pos.action.CHARGE;",
		"i.com.squareup.pos.TOTAL_AMOUNT=1250;",
		"S.com.squareup.pos.CURRENCY_CODE=GBP;",
		"S.com.squareup.pos.CLIENT_ID=sq0idp-app;",
		";end",
	} {
		if !strings.Contains(uri, want) {
			t.Errorf("intent %q missing %q", uri, want)
		}
	}
}

func TestIntentURINotConfigured(t *testing.T) {
	_, err := NewSquareTerminal(config.SquareConfig{ApplicationID: "sq0idp-app", CallbackURL: "https://box.test/cb"}).IntentURI(SquareMetadata{Sale: "abc"}, decimal.NewFromInt(1))
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseCallback(t *testing.T) {
	term := testTerminal()
	uri, err := term.IntentURI(SquareMetadata{Sale: "abc", Festival: 2}, decimal.NewFromInt(5))
	if err != nil {
		t.Fatal(err)
	}
	q := url.Values{}
	q.Set(SquareRequestMetadata, sentMetadata(t, uri))
	q.Set(SquareServerTransactionID, "srv-1")

	r, err := term.ParseCallback(q)
	if err != nil {
		t.Fatal(err)
	}
	if !r.OK() || r.Metadata.Sale != "abc" || r.Metadata.Festival != 2 {
		t.Fatalf("unexpected result %+v", r)
	}

	q.Set(SquareErrorCode, "com.squareup.pos.ERROR_TRANSACTION_CANCELED")
	r, err = term.ParseCallback(q)
	if err != nil || r.OK() {
		t.Fatalf("error callback parsed as ok: %+v, %v", r, err)
	}

	if _, err := term.ParseCallback(url.Values{}); !errors.Is(err, ErrBadCallback) {
		t.Fatalf("missing metadata: err = %v", err)
	}
}

func TestParseCallbackRejectsForgedMetadata(t *testing.T) {
	term := testTerminal()
	uri, err := term.IntentURI(SquareMetadata{Sale: "abc", Festival: 2}, decimal.NewFromInt(5))
	if err != nil {
		t.Fatal(err)
	}
	var signed SquareMetadata
	if err := json.Unmarshal([]byte(sentMetadata(t, uri)), &signed); err != nil {
		t.Fatal(err)
	}

	forged := map[string]string{
		"unsigned":       `{"sale":"abc","festival":2}`,
		"other sale":     `{"sale":"xyz","festival":2,"sig":"` + signed.Signature + `"}`,
		"other festival": `{"sale":"abc","festival":3,"sig":"` + signed.Signature + `"}`,
		"garbage sig":    `{"sale":"abc","festival":2,"sig":"00"}`,
	}
	for name, meta := range forged {
		q := url.Values{}
		q.Set(SquareRequestMetadata, meta)
		q.Set(SquareServerTransactionID, "srv-1")
		if _, err := term.ParseCallback(q); !errors.Is(err, ErrBadCallback) {
			t.Errorf("%s: err = %v", name, err)
		}
	}

	other := NewSquareTerminal(config.SquareConfig{SigningKey: "another-key"})
	q := url.Values{}
	q.Set(SquareRequestMetadata, sentMetadata(t, uri))
	if _, err := other.ParseCallback(q); !errors.Is(err, ErrBadCallback) {
		t.Errorf("different key: err = %v", err)
	}
}

func TestPence(t *testing.T) {
	cases := map[string]int64{"0": 0, "5": 500, "12.345": 1235, "0.01": 1}
	for in, want := range cases {
		if got := ToPence(decimal.RequireFromString(in)); got != want {
			t.Errorf("ToPence(%s) = %d, want %d", in, got, want)
		}
	}
	if !FromPence(1250).Equal(decimal.RequireFromString("12.5")) {
		t.Error("FromPence(1250) != 12.5")
	}
}

func TestStripeDisabledWithoutKey(t *testing.T) {
	c := NewStripeCheckout(config.StripeConfig{Currency: "gbp"})
	if _, err := c.CreateSession(context.Background(), CheckoutRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
}

func TestLineItemsSkipsFreeLines(t *testing.T) {
	items := lineItems("gbp", []LineItem{
		{Name: "Ticket", Amount: decimal.NewFromInt(8), Quantity: 2},
		{Name: "eFringer ticket", Amount: decimal.Zero, Quantity: 1},
	})
	if len(items) != 1 || *items[0].PriceData.UnitAmount != 800 || *items[0].Quantity != 2 {
		t.Fatalf("unexpected items %+v", items)
	}
}
