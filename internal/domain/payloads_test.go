package domain

import (
	"errors"
	"testing"
)

func TestParseHoldingsPayload(t *testing.T) {
	body := []byte(`{
		"totalFiData": 2,
		"providers": [
			{
				"providerId": "fip-hdfc",
				"providerName": "HDFC Bank",
				"accounts": [
					{"linkRefNumber": "acc-1", "maskedAccNumber": "XXXX1234", "accType": "SAVINGS", "fiType": "DEPOSIT", "currentBalance": 1250.75},
					{"linkRefNumber": "acc-2", "maskedAccNumber": "XXXX5678", "accType": "CURRENT", "fiType": "DEPOSIT", "currentBalance": 300}
				]
			}
		]
	}`)

	p, err := ParseHoldingsPayload(body)
	if err != nil {
		t.Fatalf("ParseHoldingsPayload: %v", err)
	}
	if p.TotalFiData != 2 {
		t.Fatalf("totalFiData = %d, want 2", p.TotalFiData)
	}
	if len(p.Providers) != 1 || len(p.Providers[0].Accounts) != 2 {
		t.Fatalf("unexpected shape: %+v", p)
	}
	if p.Providers[0].Accounts[0].ExternalAccountID != "acc-1" {
		t.Fatalf("linkRefNumber not mapped: %+v", p.Providers[0].Accounts[0])
	}
}

func TestParseHoldingsPayload_RejectsUnknownShape(t *testing.T) {
	// A statement-style body must not be accepted as holdings.
	_, err := ParseHoldingsPayload([]byte(`{"transactions":[]}`))
	if !errors.Is(err, ErrUnknownPayloadShape) {
		t.Fatalf("expected ErrUnknownPayloadShape, got %v", err)
	}
}

func TestParseHoldingsPayload_RejectsGarbage(t *testing.T) {
	if _, err := ParseHoldingsPayload([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := ParseHoldingsPayload([]byte(`[1,2,3]`)); err == nil {
		t.Fatal("expected decode error for non-object body")
	}
}

func TestParseTransactionsPayload(t *testing.T) {
	body := []byte(`{"transactions":[{"txnId":"t1","amount":99.5,"type":"CREDIT"}]}`)
	p, err := ParseTransactionsPayload(body)
	if err != nil {
		t.Fatalf("ParseTransactionsPayload: %v", err)
	}
	if len(p.Transactions) != 1 || p.Transactions[0].TxnID != "t1" {
		t.Fatalf("unexpected shape: %+v", p)
	}
}

func TestParseTransactionsPayload_RejectsHoldingsShape(t *testing.T) {
	_, err := ParseTransactionsPayload([]byte(`{"providers":[]}`))
	if !errors.Is(err, ErrUnknownPayloadShape) {
		t.Fatalf("expected ErrUnknownPayloadShape, got %v", err)
	}
}
