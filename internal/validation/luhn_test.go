package validation

import "testing"

func TestIsLuhnValid(t *testing.T) {
	tests := []struct {
		name   string
		number string
		valid  bool
	}{
		{
			name:   "valid example 1",
			number: "79927398713",
			valid:  true,
		},
		{
			name:   "valid with separators",
			number: "4539 5787-6362 1486",
			valid:  true,
		},
		{
			name:   "invalid checksum",
			number: "79927398710",
			valid:  false,
		},
		{
			name:   "contains letters",
			number: "1234a67890",
			valid:  false,
		},
		{
			name:   "empty",
			number: "  ",
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLuhnValid(tt.number); got != tt.valid {
				t.Fatalf("IsLuhnValid(%q) = %v, want %v", tt.number, got, tt.valid)
			}
		})
	}
}

func TestIsValidVoucher(t *testing.T) {
	tests := map[string]bool{
		"79927398713":         true,
		"4539 5787-6362 1486": true,
		"0":                   false,
		"000":                 false,
		"0000000":             false,
		"00000000":            true,
		"79927398710":         false,
	}

	for code, want := range tests {
		if got := IsValidVoucher(code); got != want {
			t.Fatalf("IsValidVoucher(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := map[string]bool{
		"+1 (212) 555-0199": true,
		"0712345678":        true,
		"12345":             false,
		"+1 212 555 01a9":   false,
		"1234567890123456":  false,
	}

	for phone, want := range tests {
		if got := IsValidPhone(phone); got != want {
			t.Fatalf("IsValidPhone(%q) = %v, want %v", phone, got, want)
		}
	}
}

func TestIsValidPostalCode(t *testing.T) {
	tests := map[string]bool{
		"10001":    true,
		"SW1A 1AA": true,
		"00-950":   true,
		"AB":       false,
		"ABCDE":    false,
		"1234#":    false,
	}

	for code, want := range tests {
		if got := IsValidPostalCode(code); got != want {
			t.Fatalf("IsValidPostalCode(%q) = %v, want %v", code, got, want)
		}
	}
}
