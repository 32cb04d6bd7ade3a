package signal

import "testing"

func TestClientEventValidate_Initiate(t *testing.T) {
	e := ClientEvent{Type: EventInitiateCall, CallID: "c1", RecipientID: "r1"}
	if err := e.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	e = ClientEvent{Type: EventInitiateCall, CallID: "c1"}
	if err := e.Validate(); err == nil {
		t.Fatalf("expected error for missing recipient_id")
	}
	e = ClientEvent{Type: EventInitiateCall, RecipientID: "r1"}
	if err := e.Validate(); err == nil {
		t.Fatalf("expected error for missing call_id")
	}
}

func TestClientEventValidate_LifecycleEventsNeedCallID(t *testing.T) {
	for _, typ := range []EventType{EventAcceptCall, EventRejectCall, EventEndCall} {
		if err := (ClientEvent{Type: typ, CallID: "c1"}).Validate(); err != nil {
			t.Fatalf("%s: unexpected err: %v", typ, err)
		}
		if err := (ClientEvent{Type: typ}).Validate(); err == nil {
			t.Fatalf("%s: expected error for missing call_id", typ)
		}
	}
}

func TestClientEventValidate_UnknownType(t *testing.T) {
	if err := (ClientEvent{Type: "whatever", CallID: "c1"}).Validate(); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if err := (ClientEvent{}).Validate(); err == nil {
		t.Fatalf("expected error for empty type")
	}
}

func TestCallFailedCarriesReason(t *testing.T) {
	evt := CallFailed("c1", ReasonNoAnswer)
	if evt.Type != EventCallFailed || evt.CallID != "c1" || evt.Reason != ReasonNoAnswer {
		t.Fatalf("unexpected event: %+v", evt)
	}
}
