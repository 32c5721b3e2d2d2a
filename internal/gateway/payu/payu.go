// Package payu builds PayU hosted-checkout requests and verifies the
// response hash PayU posts back to the success/failure URLs.
package payu

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// ServiceProvider is sent with every initiation request.
const ServiceProvider = "payu_paisa"

// Client holds the merchant credentials. It performs no network I/O: the
// browser posts the initiation form to BaseURL.
type Client struct {
	key        string
	salt       string
	baseURL    string
	successURL string
	failureURL string
}

func NewClient(key, salt, baseURL, successURL, failureURL string) *Client {
	return &Client{
		key:        key,
		salt:       salt,
		baseURL:    baseURL,
		successURL: successURL,
		failureURL: failureURL,
	}
}

// InitiationRequest describes one checkout.
type InitiationRequest struct {
	Reference   string
	Amount      int64
	ProductInfo string
	FirstName   string
	Email       string
	Phone       string
}

// Initiation is what the client needs to redirect to the gateway: a POST
// of Fields to Action.
type Initiation struct {
	Action string            `json:"action"`
	Fields map[string]string `json:"fields"`
}

// FormatAmount renders an amount in minor units (paise) as the rupee
// string PayU expects and echoes back, e.g. 500000 -> "5000.00".
func FormatAmount(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

func (c *Client) Initiate(req InitiationRequest) Initiation {
	amount := FormatAmount(req.Amount)
	fields := map[string]string{
		"key":              c.key,
		"txnid":            req.Reference,
		"amount":           amount,
		"productinfo":      req.ProductInfo,
		"firstname":        req.FirstName,
		"email":            req.Email,
		"phone":            req.Phone,
		"surl":             c.successURL,
		"furl":             c.failureURL,
		"service_provider": ServiceProvider,
	}
	// key|txnid|amount|productinfo|firstname|email|udf1..udf5||||||salt
	fields["hash"] = sum(c.key, req.Reference, amount, req.ProductInfo, req.FirstName, req.Email,
		"", "", "", "", "", "", "", "", "", "", c.salt)
	return Initiation{Action: c.baseURL, Fields: fields}
}

// Verify checks the reverse hash of a gateway response:
// [additionalCharges|]salt|status||||||udf5..udf1|email|firstname|productinfo|amount|txnid|key.
// A client without merchant credentials verifies nothing.
func (c *Client) Verify(fields map[string]string) bool {
	if c.key == "" || c.salt == "" {
		return false
	}
	got := strings.ToLower(fields["hash"])
	if got == "" || fields["key"] != c.key {
		return false
	}
	parts := []string{
		c.salt, fields["status"],
		"", "", "", "", "",
		fields["udf5"], fields["udf4"], fields["udf3"], fields["udf2"], fields["udf1"],
		fields["email"], fields["firstname"], fields["productinfo"], fields["amount"], fields["txnid"], c.key,
	}
	if charges := fields["additionalCharges"]; charges != "" {
		parts = append([]string{charges}, parts...)
	}
	want := sum(parts...)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func sum(parts ...string) string {
	h := sha512.Sum512([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}
