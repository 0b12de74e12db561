package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/config"
)

const (
	squareAction     = "com.squareup.pos.action.CHARGE"
	squareAPIVersion = "v2.0"
	squareTender     = "com.squareup.pos.TENDER_CARD"
)

// Callback query parameters sent back by the Square POS app.
const (
	SquareServerTransactionID = "com.squareup.pos.SERVER_TRANSACTION_ID"
	SquareClientTransactionID = "com.squareup.pos.CLIENT_TRANSACTION_ID"
	SquareRequestMetadata     = "com.squareup.pos.REQUEST_METADATA"
	SquareErrorCode           = "com.squareup.pos.ERROR_CODE"
)

// ErrBadCallback is returned for callbacks that cannot be matched to a sale.
var ErrBadCallback = errors.New("invalid square callback")

// SquareMetadata round-trips through the POS app so the callback can find
// the sale it belongs to.  Signature is set by IntentURI.
type SquareMetadata struct {
	Sale      string `json:"sale"`
	Festival  uint64 `json:"festival"`
	Signature string `json:"sig,omitempty"`
}

// SquareTerminal builds charge intents for the Square POS Android app.
type SquareTerminal struct {
	cfg config.SquareConfig
}

// NewSquareTerminal returns a terminal for the given application.
func NewSquareTerminal(cfg config.SquareConfig) *SquareTerminal {
	if cfg.Currency == "" {
		cfg.Currency = "GBP"
	}
	return &SquareTerminal{cfg: cfg}
}

// IntentURI returns the Android intent that opens the POS app to charge
// amount.  Only card tenders are offered.
func (t *SquareTerminal) IntentURI(meta SquareMetadata, amount decimal.Decimal) (string, error) {
	if t.cfg.ApplicationID == "" || t.cfg.CallbackURL == "" || t.cfg.SigningKey == "" {
		return "", ErrNotConfigured
	}
	meta.Signature = t.sign(meta)
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	parts := []string{
		"intent:#Intent",
		"action=" + squareAction,
		"package=com.squareup",
		"S.com.squareup.pos.WEB_CALLBACK_URI=" + t.cfg.CallbackURL,
		"S.com.squareup.pos.CLIENT_ID=" + t.cfg.ApplicationID,
		"S.com.squareup.pos.API_VERSION=" + squareAPIVersion,
		fmt.Sprintf("i.com.squareup.pos.TOTAL_AMOUNT=%d", ToPence(amount)),
		"S.com.squareup.pos.CURRENCY_CODE=" + t.cfg.Currency,
		"S.com.squareup.pos.TENDER_TYPES=" + squareTender,
		"S.com.squareup.pos.REQUEST_METADATA=" + url.QueryEscape(string(raw)),
		"end",
	}
	return strings.Join(parts, ";"), nil
}

// SquareResult is a parsed POS callback.
type SquareResult struct {
	ServerTransactionID string
	ClientTransactionID string
	ErrorCode           string
	Metadata            SquareMetadata
}

// OK reports whether the terminal took the payment.
func (r SquareResult) OK() bool { return r.ErrorCode == "" && r.ServerTransactionID != "" }

// sign is the hex HMAC-SHA256 of the sale and festival under SigningKey.
func (t *SquareTerminal) sign(meta SquareMetadata) string {
	mac := hmac.New(sha256.New, []byte(t.cfg.SigningKey))
	fmt.Fprintf(mac, "%s|%d", meta.Sale, meta.Festival)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseCallback reads the callback query.  The metadata must name a sale
// and carry the signature IntentURI put on it; everything else is optional
// and interpreted by OK.
func (t *SquareTerminal) ParseCallback(q url.Values) (SquareResult, error) {
	r := SquareResult{
		ServerTransactionID: q.Get(SquareServerTransactionID),
		ClientTransactionID: q.Get(SquareClientTransactionID),
		ErrorCode:           q.Get(SquareErrorCode),
	}
	raw := q.Get(SquareRequestMetadata)
	if raw == "" {
		return r, ErrBadCallback
	}
	if err := json.Unmarshal([]byte(raw), &r.Metadata); err != nil || r.Metadata.Sale == "" {
		return r, ErrBadCallback
	}
	if t.cfg.SigningKey == "" || !hmac.Equal([]byte(r.Metadata.Signature), []byte(t.sign(r.Metadata))) {
		return r, ErrBadCallback
	}
	return r, nil
}
