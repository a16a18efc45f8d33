package util

import "testing"

func TestNormalizeCPF(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"529.982.247-25", "52998224725"},
		{" 529 982 247 25 ", "52998224725"},
		{"52998224725", "52998224725"},
		{"abc", ""},
	}

	for _, tc := range cases {
		if got := NormalizeCPF(tc.in); got != tc.want {
			t.Errorf("NormalizeCPF(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidateCPF(t *testing.T) {
	cases := []struct {
		name  string
		cpf   string
		valid bool
	}{
		{"válido sem máscara", "52998224725", true},
		{"válido com máscara", "529.982.247-25", true},
		{"primeiro dígito verificador errado", "52998224735", false},
		{"segundo dígito verificador errado", "52998224726", false},
		{"todos os dígitos iguais", "11111111111", false},
		{"curto demais", "5299822472", false},
		{"longo demais", "529982247255", false},
		{"vazio", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateCPF(tc.cpf); got != tc.valid {
				t.Fatalf("ValidateCPF(%q) = %v, want %v", tc.cpf, got, tc.valid)
			}
		})
	}
}
