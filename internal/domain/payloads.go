// Upstream payload schemas.
//
// The aggregator API returns JSON in two families: holdings-style responses
// ({totalFiData, providers:[...]}) and statement-style responses
// ({transactions:[...]}). Payloads are parsed and shape-checked at the proxy
// boundary so untyped data never reaches the upsert stages.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownPayloadShape is returned when an upstream response body does not
// match any known payload family.
var ErrUnknownPayloadShape = errors.New("upstream payload does not match a known shape")

// LoginRequest is the body of the aggregator's identity endpoint.
type LoginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token issued by the identity endpoint.
type LoginResponse struct {
	Token string `json:"token"`
}

// FetchRequest is the body sent to holdings- and statement-style endpoints,
// keyed by the stable end-user identifier.
type FetchRequest struct {
	UniqueIdentifier string `json:"uniqueIdentifier"`
}

// UpstreamAccount is one account entry inside a provider block of a
// holdings-style response. ExternalAccountID (linkRefNumber upstream) is the
// stable identifier used as the canonical upsert key; entries without it are
// skipped by the canonical stage.
type UpstreamAccount struct {
	ExternalAccountID string  `json:"linkRefNumber"`
	AccountRefNumber  string  `json:"accRefNumber"`
	MaskedNumber      string  `json:"maskedAccNumber"`
	AccountType       string  `json:"accType"`
	FIType            string  `json:"fiType"`
	CurrentBalance    float64 `json:"currentBalance"`
	AvailableBalance  float64 `json:"availableBalance"`
	InterestRate      float64 `json:"interestRate"`
	Branch            string  `json:"branch"`
	IFSC              string  `json:"ifsc"`
}

// UpstreamProvider is one financial institution block of a holdings-style
// response, carrying the accounts the user holds with it.
type UpstreamProvider struct {
	ProviderID   string            `json:"providerId"`
	ProviderName string            `json:"providerName"`
	Accounts     []UpstreamAccount `json:"accounts"`
}

// HoldingsPayload is a holdings-style upstream response.
type HoldingsPayload struct {
	TotalFiData int                `json:"totalFiData"`
	Providers   []UpstreamProvider `json:"providers"`
}

// UpstreamTransaction is one entry of a statement-style response.
type UpstreamTransaction struct {
	TxnID     string  `json:"txnId"`
	Amount    float64 `json:"amount"`
	Type      string  `json:"type"`
	Narration string  `json:"narration"`
	Balance   float64 `json:"currentBalance"`
	Timestamp string  `json:"transactionTimestamp"`
}

// TransactionsPayload is a statement-style upstream response.
type TransactionsPayload struct {
	Transactions []UpstreamTransaction `json:"transactions"`
}

// ParseHoldingsPayload decodes and shape-checks a holdings-style response
// body. A body that decodes but carries no "providers" key is rejected with
// ErrUnknownPayloadShape so that statement-style (or garbage) bodies cannot
// flow into the canonical stage.
func ParseHoldingsPayload(body []byte) (*HoldingsPayload, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("decode upstream body: %w", err)
	}
	if _, ok := probe["providers"]; !ok {
		return nil, ErrUnknownPayloadShape
	}
	var p HoldingsPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode holdings payload: %w", err)
	}
	return &p, nil
}

// ParseTransactionsPayload decodes and shape-checks a statement-style
// response body.
func ParseTransactionsPayload(body []byte) (*TransactionsPayload, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("decode upstream body: %w", err)
	}
	if _, ok := probe["transactions"]; !ok {
		return nil, ErrUnknownPayloadShape
	}
	var p TransactionsPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode transactions payload: %w", err)
	}
	return &p, nil
}
