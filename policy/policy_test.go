package policy

import "testing"

func TestWhitelistTakesPrecedenceOverBlacklist(t *testing.T) {
	s := NewSet()
	s.Whitelist = []string{"10.0.0.1"}
	s.Blacklist = []string{"10.0.0.1"} // would reject if consulted

	if !s.IsAllowed("10.0.0.1") {
		t.Fatal("whitelisted peer must be admitted even though it's also blacklisted")
	}
	if s.IsAllowed("10.0.0.2") {
		t.Fatal("non-whitelisted peer must be refused when a whitelist is configured")
	}
}

func TestBlacklistRejectsWhenNoWhitelist(t *testing.T) {
	s := NewSet()
	s.Blacklist = []string{"10.0.0.9"}

	if s.IsAllowed("10.0.0.9") {
		t.Fatal("blacklisted peer must be refused")
	}
	if !s.IsAllowed("10.0.0.1") {
		t.Fatal("non-blacklisted peer must be admitted")
	}
}

func TestOpenPolicyAdmitsEveryone(t *testing.T) {
	s := NewSet()
	if !s.IsAllowed("203.0.113.5") {
		t.Fatal("empty whitelist and blacklist must admit every peer")
	}
}

func TestValidateRejectsShortInactivityTimeout(t *testing.T) {
	s := NewSet()
	s.InactivityTimeout = 1
	if err := s.Validate(); err == nil {
		t.Fatal("expected validation error for sub-5s non-zero timeout")
	}
}

func TestValidateAllowsZeroInactivityTimeout(t *testing.T) {
	s := NewSet()
	s.InactivityTimeout = 0
	if err := s.Validate(); err != nil {
		t.Fatalf("zero timeout should validate: %v", err)
	}
}
