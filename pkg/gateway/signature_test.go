package gateway

import (
	"testing"
	"time"
)

func TestSignAndVerify(t *testing.T) {
	body := []byte(`{"type":"payment.succeeded","payload":{"order_ref":"LB-1"}}`)
	secret := "whsec_test"
	ts := time.Now().Unix()

	header := Sign(secret, "evt_123", ts, body)
	if !VerifySignature(body, header, secret) {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	body := []byte(`{"type":"payment.succeeded"}`)
	secret := "whsec_test"
	header := Sign(secret, "evt_123", 1700000000, body)

	if VerifySignature([]byte(`{"type":"payment.failed"}`), header, secret) {
		t.Fatal("tampered body must not verify")
	}
	// Swapping the event id invalidates the signature for the original header.
	swapped := "t=1700000000,id=evt_999,v1=" + header[len("t=1700000000,id=evt_123,v1="):]
	if VerifySignature(body, swapped, secret) {
		t.Fatal("swapped event id must not verify")
	}
	if VerifySignature(body, header, "other-secret") {
		t.Fatal("wrong secret must not verify")
	}
}

func TestVerifySignatureRejectsMissingParts(t *testing.T) {
	body := []byte("{}")
	secret := "whsec_test"

	cases := []string{
		"",
		"garbage",
		"t=1700000000,v1=deadbeef",
		"id=evt_1,v1=deadbeef",
		"t=1700000000,id=evt_1",
	}
	for _, header := range cases {
		if VerifySignature(body, header, secret) {
			t.Fatalf("header %q must not verify", header)
		}
	}
	if VerifySignature(body, Sign("whsec_test", "evt_1", 1, body), "") {
		t.Fatal("empty secret must never verify")
	}
}
