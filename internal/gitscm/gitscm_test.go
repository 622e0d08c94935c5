package gitscm

import "testing"

func TestValidateURLAcceptsCommonSchemes(t *testing.T) {
	for _, u := range []string{
		"https://git.example.com/rpms/bash.git",
		"git://git.example.com/rpms/bash.git",
		"ssh://git@git.example.com/rpms/bash.git",
	} {
		if err := ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", u, err)
		}
	}
}

func TestValidateURLRejectsEmpty(t *testing.T) {
	if err := ValidateURL(""); err == nil {
		t.Error("expected error for empty URL")
	}
}

func TestValidateURLRejectsControlChars(t *testing.T) {
	if err := ValidateURL("https://example.com/repo\n.git"); err == nil {
		t.Error("expected error for embedded newline")
	}
}

func TestValidateURLRejectsBadScheme(t *testing.T) {
	if err := ValidateURL("javascript://alert(1)"); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

func TestValidatePathRejectsTraversal(t *testing.T) {
	if err := validatePath("/scratch", "/scratch/../etc"); err == nil {
		t.Error("expected error for path traversal")
	}
}

func TestValidatePathAcceptsWithinRoot(t *testing.T) {
	if err := validatePath("/scratch", "/scratch/config-123"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
