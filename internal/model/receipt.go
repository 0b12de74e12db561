package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Receipt kinds.
const (
    ReceiptSale   = "Sale"
    ReceiptRefund = "Refund"
)

// Receipt is the printable and mailable summary of a completed sale or
// refund.  It is built once from the ledger rows and then rendered as PDF,
// e-mail or an event payload.
type Receipt struct {
    Kind      string          `json:"kind"`
    Festival  string          `json:"festival"`
    Reference string          `json:"reference"` // sale or refund uuid
    Customer  string          `json:"customer"`
    Method    string          `json:"method"`
    Lines     []ReceiptLine   `json:"lines"`
    Total     decimal.Decimal `json:"total"`
    Date      time.Time       `json:"date"`
}

// ReceiptLine is one row of a receipt.
type ReceiptLine struct {
    Description string          `json:"description"`
    Quantity    int             `json:"quantity"`
    Amount      decimal.Decimal `json:"amount"`
}
