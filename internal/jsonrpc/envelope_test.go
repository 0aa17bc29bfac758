package jsonrpc

import "testing"

func TestClassifyRequest(t *testing.T) {
	kind, req, _, _, err := Classify([]byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != KindRequest {
		t.Fatalf("expected KindRequest, got %v", kind)
	}
	if req.Method != "initialize" {
		t.Fatalf("expected method initialize, got %q", req.Method)
	}
	if req.ID.IsString() || req.ID.Int() != 1 {
		t.Fatalf("expected numeric id 1, got %+v", req.ID)
	}
}

func TestClassifyNotification(t *testing.T) {
	kind, _, note, _, err := Classify([]byte(`{"jsonrpc":"2.0","method":"exit"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != KindNotification {
		t.Fatalf("expected KindNotification, got %v", kind)
	}
	if note.Method != "exit" {
		t.Fatalf("expected method exit, got %q", note.Method)
	}
}

func TestClassifyResponse(t *testing.T) {
	kind, _, _, resp, err := Classify([]byte(`{"jsonrpc":"2.0","id":"abc","result":{"ok":true}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != KindResponse {
		t.Fatalf("expected KindResponse, got %v", kind)
	}
	if !resp.ID.Valid || !resp.ID.ID.IsString() || resp.ID.ID.String() != "abc" {
		t.Fatalf("expected string id abc, got %+v", resp.ID)
	}
}

func TestClassifyInvalid(t *testing.T) {
	kind, _, _, _, err := Classify([]byte(`{"jsonrpc":"2.0"}`))
	if kind != KindInvalid || err == nil {
		t.Fatalf("expected invalid envelope, got kind=%v err=%v", kind, err)
	}
}

func TestClassifyResponseMissingResultAndErrorIsInvalid(t *testing.T) {
	kind, _, _, _, err := Classify([]byte(`{"jsonrpc":"2.0","id":1}`))
	if kind != KindInvalid || err == nil {
		t.Fatalf("expected invalid envelope for a response with neither result nor error, got kind=%v err=%v", kind, err)
	}
}

func TestClassifyResponseWithNullResultIsValid(t *testing.T) {
	kind, _, _, resp, err := Classify([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != KindResponse {
		t.Fatalf("expected KindResponse for an explicit null result, got %v", kind)
	}
	if resp.Error != nil {
		t.Fatalf("expected no error on the response, got %+v", resp.Error)
	}
}

func TestIDDistinguishesNumberFromString(t *testing.T) {
	intID := IntID(1)
	strID := StringID("1")
	if intID == strID {
		t.Fatalf("expected IntID(1) and StringID(\"1\") to be distinct")
	}

	m := map[ID]bool{intID: true}
	if m[strID] {
		t.Fatalf("string id should not collide with numeric id in a map")
	}
}

func TestEncodeResponseNullID(t *testing.T) {
	data, err := EncodeResponse(Response{ID: NullID, Error: &Fault{Code: CodeParseError, Message: "bad json"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"bad json"}}` {
		t.Fatalf("unexpected encoding: %s", data)
	}
}
