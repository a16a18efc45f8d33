package util

import "testing"

func TestValidateTelefone(t *testing.T) {
	cases := []struct {
		telefone string
		valid    bool
	}{
		{"(83) 99999-1234", true},
		{"83 99999-1234", true},
		{"8399991234", true},
		{"(83) 3333-1234", true},
		{"99999-1234", false},
		{"telefone", false},
		{"", false},
	}

	for _, tc := range cases {
		err := ValidateTelefone(tc.telefone)
		if tc.valid && err != nil {
			t.Errorf("ValidateTelefone(%q) = %v, want nil", tc.telefone, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("ValidateTelefone(%q) = nil, want error", tc.telefone)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	if err := ValidateEmail("maria@example.com"); err != nil {
		t.Fatalf("email válido rejeitado: %v", err)
	}
	if err := ValidateEmail("sem-arroba"); err == nil {
		t.Fatal("email inválido aceito")
	}
	if err := ValidateEmail(""); err == nil {
		t.Fatal("email vazio aceito")
	}
}
