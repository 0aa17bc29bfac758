package lspclient

import (
	"strings"
	"testing"

	"github.com/dj1mm/vhdlls/internal/jsonrpc"
)

type fakeSender struct {
	sent []string
}

func (f *fakeSender) SendNotification(method string, params jsonrpc.RawJSON) error {
	f.sent = append(f.sent, method+":"+string(params))
	return nil
}

func (f *fakeSender) SendRequest(method string, params jsonrpc.RawJSON) (jsonrpc.RawJSON, error) {
	f.sent = append(f.sent, method+":"+string(params))
	return jsonrpc.RawJSON("null"), nil
}

func TestShowMessageSendsWindowShowMessage(t *testing.T) {
	sender := &fakeSender{}
	c := New(sender)
	c.ShowMessage("hello")

	if len(sender.sent) != 1 || !strings.HasPrefix(sender.sent[0], "window/showMessage:") {
		t.Fatalf("unexpected notifications: %v", sender.sent)
	}
	if !strings.Contains(sender.sent[0], `"message":"hello"`) {
		t.Fatalf("expected message payload, got %v", sender.sent[0])
	}
}

func TestSendDiagnosticsConvertsToZeroBasedRange(t *testing.T) {
	sender := &fakeSender{}
	c := New(sender)
	c.SendDiagnostics("/a.vhd", []Diagnostic{{Message: "bad", Line: 3, Column: 5}})

	if len(sender.sent) != 1 {
		t.Fatalf("expected one publishDiagnostics notification, got %v", sender.sent)
	}
	if !strings.Contains(sender.sent[0], `"line":2,"character":4`) {
		t.Fatalf("expected zero-based range, got %v", sender.sent[0])
	}
	if !strings.Contains(sender.sent[0], `"uri":"file:///a.vhd"`) {
		t.Fatalf("expected uri, got %v", sender.sent[0])
	}
}

func TestCreateWorkDoneProgressGatesSecondBar(t *testing.T) {
	sender := &fakeSender{}
	c := New(sender)

	first, err := c.CreateWorkDoneProgress("tok1")
	if err != nil || first == nil {
		t.Fatalf("CreateWorkDoneProgress: bar=%v err=%v", first, err)
	}

	second, err := c.CreateWorkDoneProgress("tok2")
	if err != nil || second != nil {
		t.Fatalf("expected nil second bar while first is visible, got bar=%v err=%v", second, err)
	}
}
