package util

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

var telefoneRe = regexp.MustCompile(`^\(?\d{2}\)?[\s.-]?\d{4,5}[\s.-]?\d{4}$`)

// ValidateEmail retorna erro para e-mails inválidos.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email obrigatório")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("email inválido")
	}
	return nil
}

// ValidateTelefone aceita formatos nacionais com ou sem máscara (DDD + 8/9 dígitos).
func ValidateTelefone(telefone string) error {
	telefone = strings.TrimSpace(telefone)
	if telefone == "" {
		return errors.New("telefone obrigatório")
	}
	if !telefoneRe.MatchString(telefone) {
		return errors.New("telefone inválido")
	}
	return nil
}

// ValidatePassword verifica requisitos mínimos de senha.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("senha deve ter pelo menos 8 caracteres")
	}
	return nil
}

// RequireString garante string não vazia.
func RequireString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(field + " obrigatório")
	}
	return nil
}
