package llm

import (
	"errors"
	"testing"
)

func TestDecodeJSONDiscardsPreamble(t *testing.T) {
	var decoded map[string]int
	err := DecodeJSON(`<reasoning>the user seems fine</reasoning>{"a":1}`, &decoded)
	if err != nil {
		t.Fatalf("expected successful decode: %v", err)
	}
	if decoded["a"] != 1 {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestDecodeJSONHandlesArrays(t *testing.T) {
	var decoded []string
	if err := DecodeJSON("Here you go: [\"x\",\"y\"]", &decoded); err != nil {
		t.Fatalf("expected successful decode: %v", err)
	}
	if len(decoded) != 2 || decoded[0] != "x" {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestDecodeJSONNoPayload(t *testing.T) {
	var decoded map[string]int
	err := DecodeJSON("I could not produce any structured output.", &decoded)
	if !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
}

func TestDecodeJSONTruncatedPayload(t *testing.T) {
	var decoded map[string]int
	err := DecodeJSON(`{"a": 1`, &decoded)
	if !errors.Is(err, ErrBadJSON) {
		t.Fatalf("expected ErrBadJSON, got %v", err)
	}
}

func TestAnalysisReplyValidateRequiresAMetric(t *testing.T) {
	if err := (AnalysisReply{}).Validate(); err == nil {
		t.Fatalf("expected empty analysis reply to fail validation")
	}
	score := 5.0
	reply := AnalysisReply{Clarity: &RawReading{Score: &score}}
	if err := reply.Validate(); err != nil {
		t.Fatalf("expected reply with one metric to validate: %v", err)
	}
}

func TestNudgeReplyValidateRequiresHeadlineAndBody(t *testing.T) {
	if err := (NudgeReply{Headline: "only headline"}).Validate(); err == nil {
		t.Fatalf("expected missing body to fail validation")
	}
	full := NudgeReply{Headline: "h", Body: "b"}
	if err := full.Validate(); err != nil {
		t.Fatalf("expected full nudge reply to validate: %v", err)
	}
}

func TestGuidanceReplyValidateRequiresGuidance(t *testing.T) {
	if err := (GuidanceReply{Focus: "rest"}).Validate(); err == nil {
		t.Fatalf("expected missing guidance to fail validation")
	}
}
