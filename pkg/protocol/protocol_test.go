package protocol

import (
	"encoding/json"
	"testing"
)

func TestIDWireForms(t *testing.T) {
	t.Parallel()

	numeric, err := json.Marshal(NumberID(42))
	if err != nil {
		t.Fatalf("marshal numeric id: %v", err)
	}
	if string(numeric) != "42" {
		t.Fatalf("numeric id = %s, expected 42", numeric)
	}

	str, err := json.Marshal(StringID("abc"))
	if err != nil {
		t.Fatalf("marshal string id: %v", err)
	}
	if string(str) != `"abc"` {
		t.Fatalf(`string id = %s, expected "abc"`, str)
	}

	var parsed ID
	if err := json.Unmarshal([]byte(`"req-7"`), &parsed); err != nil {
		t.Fatalf("unmarshal string id: %v", err)
	}
	if !parsed.Equal(StringID("req-7")) {
		t.Fatalf("parsed id = %v, expected req-7", parsed)
	}
	if err := json.Unmarshal([]byte(`7`), &parsed); err != nil {
		t.Fatalf("unmarshal numeric id: %v", err)
	}
	if !parsed.Equal(NumberID(7)) {
		t.Fatalf("parsed id = %v, expected 7", parsed)
	}
	if err := json.Unmarshal([]byte(`{}`), &parsed); err == nil {
		t.Fatalf("object id should be rejected")
	}
}

func TestNotificationHasNoID(t *testing.T) {
	t.Parallel()

	note := NewNotification(MethodInitializedNotify, nil)
	if !note.IsNotification() {
		t.Fatalf("notification should have no id")
	}
	encoded, err := json.Marshal(note)
	if err != nil {
		t.Fatalf("marshal notification: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal notification: %v", err)
	}
	if _, present := decoded["id"]; present {
		t.Fatalf("notification must not carry an id field: %s", encoded)
	}
	if decoded["jsonrpc"] != Version {
		t.Fatalf("jsonrpc = %v, expected %s", decoded["jsonrpc"], Version)
	}

	call := NewRequest(NumberID(1), MethodToolsList, nil)
	if call.IsNotification() {
		t.Fatalf("request with id must not be a notification")
	}
}

func TestResponseResultXorError(t *testing.T) {
	t.Parallel()

	var resp Response
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`), &resp); err != nil {
		t.Fatalf("unmarshal result response: %v", err)
	}
	if !resp.Valid() {
		t.Fatalf("result-only response should be valid")
	}
	var out struct {
		OK bool `json:"ok"`
	}
	if err := resp.DecodeResult(&out); err != nil || !out.OK {
		t.Fatalf("DecodeResult: %v, out=%+v", err, out)
	}

	var errResp Response
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`), &errResp); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	if !errResp.Valid() {
		t.Fatalf("error-only response should be valid")
	}
	if err := errResp.DecodeResult(&out); err == nil {
		t.Fatalf("DecodeResult must surface the upstream error")
	}

	empty := &Response{JSONRPC: Version}
	if empty.Valid() {
		t.Fatalf("response with neither result nor error is invalid")
	}
}
