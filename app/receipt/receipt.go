// Package receipt renders payment receipts as SVG images and keeps them in
// the cache, keyed by their content.
package receipt

import (
	"errors"
	"fmt"
)

// MaxItems bounds the rows of one receipt.
const MaxItems = 50

var (
	ErrInvalid  = errors.New("receipt: invalid receipt")
	ErrNotFound = errors.New("receipt: not found")
)

// Item is one billed line.
type Item struct {
	Category     string  `json:"category"`
	Description  string  `json:"description"`
	StartTime    string  `json:"startTime"`
	EndTime      string  `json:"endTime"`
	UnitPrice    string  `json:"unitPrice"`
	Receivable   float64 `json:"receivable"`
	Discount     float64 `json:"discount"`
	Penalty      float64 `json:"penalty"`
	ActualAmount float64 `json:"actualAmount"`
}

// Receipt is the data printed on a receipt.
type Receipt struct {
	No            string  `json:"receiptNo"`
	ParkingSpot   string  `json:"parkingSpot"`
	Owner         string  `json:"owner"`
	Area          string  `json:"area"`
	IssueTime     string  `json:"issueTime"`
	Items         []Item  `json:"items"`
	TotalAmount   float64 `json:"totalAmount"`
	Collector     string  `json:"collector"`
	CollectTime   string  `json:"collectTime"`
	PaymentMethod string  `json:"paymentMethod"`
}

// Default fills the fields a request leaves out. Decoding a request body
// into Default() overrides only the fields the body names.
func Default() Receipt {
	return Receipt{
		No:          "38000025798",
		ParkingSpot: "1211",
		Owner:       "-",
		Area:        "123m²",
		IssueTime:   "2025-07-10 15:21",
		Items: []Item{{
			Category:     "Resource",
			Description:  "Other",
			StartTime:    "2025-02",
			EndTime:      "2025-06",
			UnitPrice:    "0.01/month",
			Receivable:   0.05,
			ActualAmount: 0.05,
		}},
		TotalAmount:   0.05,
		Collector:     "-",
		CollectTime:   "2025-07-10 15:21:27",
		PaymentMethod: "Alipay",
	}
}

func (r Receipt) Validate() error {
	switch {
	case r.No == "":
		return fmt.Errorf("%w: receiptNo is required", ErrInvalid)
	case len(r.Items) > MaxItems:
		return fmt.Errorf("%w: more than %d items", ErrInvalid, MaxItems)
	case r.TotalAmount < 0:
		return fmt.Errorf("%w: negative total", ErrInvalid)
	}
	return nil
}
