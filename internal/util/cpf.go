package util

import "strings"

// NormalizeCPF remove pontuação e espaços, mantendo apenas dígitos.
func NormalizeCPF(cpf string) string {
	var b strings.Builder
	for _, r := range cpf {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateCPF verifica os dois dígitos verificadores (módulo 11).
// CPFs com todos os dígitos iguais são rejeitados.
func ValidateCPF(cpf string) bool {
	digits := NormalizeCPF(cpf)
	if len(digits) != 11 {
		return false
	}

	allEqual := true
	for i := 1; i < 11; i++ {
		if digits[i] != digits[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return false
	}

	if checkDigit(digits, 9) != int(digits[9]-'0') {
		return false
	}
	if checkDigit(digits, 10) != int(digits[10]-'0') {
		return false
	}
	return true
}

// checkDigit calcula o dígito verificador sobre os primeiros length dígitos,
// com pesos decrescentes a partir de length+1.
func checkDigit(digits string, length int) int {
	sum := 0
	for i := 0; i < length; i++ {
		sum += int(digits[i]-'0') * (length + 1 - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}
	return rest
}
