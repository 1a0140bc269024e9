package models

import "testing"

func TestAggregate(t *testing.T) {
	ok := TargetOutcome{Status: AttemptStatusSucceeded}
	bad := TargetOutcome{Status: AttemptStatusFailed, ErrorKind: ErrorKindPermanent}
	pending := TargetOutcome{Status: AttemptStatusPending}

	tests := []struct {
		name     string
		outcomes []TargetOutcome
		expected PostStatus
	}{
		{name: "no targets", outcomes: nil, expected: PostStatusFailed},
		{name: "single success", outcomes: []TargetOutcome{ok}, expected: PostStatusPublished},
		{name: "all succeeded", outcomes: []TargetOutcome{ok, ok, ok}, expected: PostStatusPublished},
		{name: "all failed", outcomes: []TargetOutcome{bad, bad}, expected: PostStatusFailed},
		{name: "mixed", outcomes: []TargetOutcome{ok, bad}, expected: PostStatusPartiallyPublished},
		{name: "mixed order irrelevant", outcomes: []TargetOutcome{bad, ok, bad}, expected: PostStatusPartiallyPublished},
		{name: "non terminal counts as not succeeded", outcomes: []TargetOutcome{ok, pending}, expected: PostStatusPartiallyPublished},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Aggregate(tt.outcomes); got != tt.expected {
				t.Errorf("Aggregate() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestErrorKindRetryable(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		expected bool
	}{
		{ErrorKindValidation, false},
		{ErrorKindPermanent, false},
		{ErrorKindTransient, true},
		{ErrorKindCredential, true},
		{ErrorKindReauthRequired, true},
		{ErrorKindTimeout, true},
		{ErrorKindNone, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Retryable(); got != tt.expected {
				t.Errorf("%q.Retryable() = %v, want %v", tt.kind, got, tt.expected)
			}
		})
	}
}
