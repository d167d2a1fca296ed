package services

import "testing"

func TestValidateCron(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		valid      bool
	}{
		{"every 15 minutes", "*/15 * * * *", true},
		{"weekday mornings", "0 9 * * 1-5", true},
		{"hourly", "0 * * * *", true},
		{"too few fields", "* * *", false},
		{"not a cron", "every day at nine", false},
		{"bad minute", "61 * * * *", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCron(tt.expression)
			if tt.valid && err != nil {
				t.Errorf("ValidateCron(%q) = %v, expected valid", tt.expression, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("ValidateCron(%q) = nil, expected error", tt.expression)
			}
		})
	}
}
