package memory_test

import (
	"errors"
	"testing"

	"github.com/agentplane/agentplane/internal/domain"
	"github.com/agentplane/agentplane/internal/domain/memory"
)

func TestDeriveName(t *testing.T) {
	cases := []struct {
		sanitized, suffix, want string
	}{
		{"agentic_chat", "", "agentic_chat_memory"},
		{"agentic_chat", "dev", "agentic_chat_memory_dev"},
		{"chat", "pr_42", "chat_memory_pr_42"},
	}
	for _, tc := range cases {
		if got := memory.DeriveName(tc.sanitized, tc.suffix); got != tc.want {
			t.Errorf("DeriveName(%q, %q) = %q, want %q", tc.sanitized, tc.suffix, got, tc.want)
		}
	}
}

func TestDeriveName_SuffixAvoidsCollisions(t *testing.T) {
	a := memory.DeriveName("agentic_chat", "staging")
	b := memory.DeriveName("agentic_chat", "prod")
	c := memory.DeriveName("agentic_chat", "")
	if a == b || a == c || b == c {
		t.Fatalf("expected distinct names, got %q, %q, %q", a, b, c)
	}
}

func TestSpec_Name(t *testing.T) {
	s := memory.Spec{AgentName: "agentic-chat"}
	if got := s.Name(); got != "agentic_chat_memory" {
		t.Fatalf("Name() = %q", got)
	}

	s.NameSuffix = "env-a"
	if got := s.Name(); got != "agentic_chat_memory_env_a" {
		t.Fatalf("Name() with suffix = %q", got)
	}
}

func TestSpec_Validate(t *testing.T) {
	s := memory.Spec{AgentName: "agentic-chat", NameSuffix: "dev"}
	if err := s.Validate(); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	s.NameSuffix = "Dev Environment"
	if err := s.Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
