package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gestaozabele/recadastro/internal/auth"
	"github.com/gestaozabele/recadastro/internal/repo"
	"github.com/gestaozabele/recadastro/internal/servidor"
	"github.com/gestaozabele/recadastro/internal/util"
)

type stubUsuarioRepo struct {
	user         repo.Usuario
	tokens       map[string]repo.TokenRefresh
	refreshCalls int
}

func (s *stubUsuarioRepo) GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error) {
	if strings.EqualFold(email, s.user.Email) {
		return s.user, nil
	}
	return repo.Usuario{}, repo.ErrNotFound
}

func (s *stubUsuarioRepo) GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error) {
	if id == s.user.ID {
		return s.user, nil
	}
	return repo.Usuario{}, repo.ErrNotFound
}

func (s *stubUsuarioRepo) InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.TokenRefresh, error) {
	s.refreshCalls++
	token := repo.TokenRefresh{
		ID:        arg.ID,
		Subject:   arg.Subject,
		Audience:  arg.Audience,
		TokenHash: arg.TokenHash,
		Expiracao: arg.Expiracao,
		CriadoEm:  arg.CriadoEm,
	}
	if s.tokens == nil {
		s.tokens = make(map[string]repo.TokenRefresh)
	}
	s.tokens[arg.TokenHash] = token
	return token, nil
}

func (s *stubUsuarioRepo) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.TokenRefresh, error) {
	if token, ok := s.tokens[tokenHash]; ok {
		return token, nil
	}
	return repo.TokenRefresh{}, repo.ErrNotFound
}

func (s *stubUsuarioRepo) InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error {
	return nil
}

func (s *stubUsuarioRepo) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	if token, ok := s.tokens[tokenHash]; ok {
		token.Revogado = true
		s.tokens[tokenHash] = token
		return nil
	}
	return repo.ErrNotFound
}

type stubServidorRepo struct {
	servidor *servidor.Servidor
}

func (s *stubServidorRepo) GetByID(ctx context.Context, id uuid.UUID) (*servidor.Servidor, error) {
	if s.servidor != nil && s.servidor.ID == id {
		return s.servidor, nil
	}
	return nil, servidor.ErrNotFound
}

func (s *stubServidorRepo) GetByEmail(ctx context.Context, email string) (*servidor.Servidor, error) {
	if s.servidor == nil {
		return nil, servidor.ErrNotFound
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if s.servidor.Email != nil && strings.EqualFold(*s.servidor.Email, email) {
		return s.servidor, nil
	}
	return nil, servidor.ErrNotFound
}

func (s *stubServidorRepo) GetByCPF(ctx context.Context, cpf string) (*servidor.Servidor, error) {
	if s.servidor != nil && s.servidor.CPF == cpf {
		return s.servidor, nil
	}
	return nil, servidor.ErrNotFound
}

type stubRedis struct {
	store map[string]string
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if s.store == nil {
		s.store = make(map[string]string)
	}
	s.store[key] = fmt.Sprint(value)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	val, ok := s.store[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := s.store[key]; ok {
			delete(s.store, key)
			removed++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(removed)
	return cmd
}

func novoAuthServiceTeste(users *stubUsuarioRepo, servidores *stubServidorRepo) *AuthService {
	return &AuthService{
		repo:       users,
		servidores: servidores,
		redis:      &stubRedis{},
		jwt:        auth.NewJWTManager(strings.Repeat("a", 32), time.Minute),
		refreshTTL: time.Hour,
	}
}

func TestLoginRHComPapel(t *testing.T) {
	password := "SenhaForte123!"
	hash, err := auth.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	users := &stubUsuarioRepo{user: repo.Usuario{
		ID:        uuid.New(),
		Nome:      "Gestora RH",
		Email:     "rh@example.com",
		SenhaHash: hash,
		Papel:     "RH_ADMIN",
		Ativo:     true,
	}}

	svc := novoAuthServiceTeste(users, &stubServidorRepo{})

	result, err := svc.LoginRH(context.Background(), "rh@example.com", password)
	if err != nil {
		t.Fatalf("login falhou: %v", err)
	}
	if result.Audience != AudienceRH {
		t.Errorf("audience = %s, want %s", result.Audience, AudienceRH)
	}
	if len(result.Roles) != 1 || result.Roles[0] != "RH_ADMIN" {
		t.Errorf("roles = %v, want [RH_ADMIN]", result.Roles)
	}
	if users.refreshCalls != 1 {
		t.Errorf("refresh token não persistido")
	}
}

func TestLoginRHSenhaErrada(t *testing.T) {
	hash, err := auth.Hash("SenhaCorreta123!")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	users := &stubUsuarioRepo{user: repo.Usuario{
		ID:        uuid.New(),
		Email:     "rh@example.com",
		SenhaHash: hash,
		Papel:     "RH_ADMIN",
		Ativo:     true,
	}}

	svc := novoAuthServiceTeste(users, &stubServidorRepo{})

	if _, err := svc.LoginRH(context.Background(), "rh@example.com", "outra-senha"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("esperava ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginServidorPorCPF(t *testing.T) {
	password := "SenhaForte123!"
	hash, err := auth.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	sv := &servidor.Servidor{
		ID:        uuid.New(),
		Nome:      "Servidor Teste",
		CPF:       util.NormalizeCPF("529.982.247-25"),
		Matricula: "12345",
		SenhaHash: &hash,
		Ativo:     true,
	}

	svc := novoAuthServiceTeste(&stubUsuarioRepo{}, &stubServidorRepo{servidor: sv})

	result, err := svc.LoginServidor(context.Background(), "529.982.247-25", password)
	if err != nil {
		t.Fatalf("login falhou: %v", err)
	}
	if result.Audience != AudienceServidor {
		t.Errorf("audience = %s, want %s", result.Audience, AudienceServidor)
	}
	if len(result.Roles) != 1 || result.Roles[0] != "SERVIDOR" {
		t.Errorf("roles = %v, want [SERVIDOR]", result.Roles)
	}
}

func TestLoginServidorInativo(t *testing.T) {
	password := "SenhaForte123!"
	hash, err := auth.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	email := "servidor@example.com"
	sv := &servidor.Servidor{
		ID:        uuid.New(),
		CPF:       "52998224725",
		Email:     &email,
		SenhaHash: &hash,
		Ativo:     false,
	}

	svc := novoAuthServiceTeste(&stubUsuarioRepo{}, &stubServidorRepo{servidor: sv})

	if _, err := svc.LoginServidor(context.Background(), email, password); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("esperava ErrAccountDisabled, got %v", err)
	}
}

func TestRefreshRotacionaToken(t *testing.T) {
	password := "SenhaForte123!"
	hash, err := auth.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	users := &stubUsuarioRepo{user: repo.Usuario{
		ID:        uuid.New(),
		Nome:      "Gestora RH",
		Email:     "rh@example.com",
		SenhaHash: hash,
		Papel:     "RH_GESTOR",
		Ativo:     true,
	}}

	svc := novoAuthServiceTeste(users, &stubServidorRepo{})

	login, err := svc.LoginRH(context.Background(), "rh@example.com", password)
	if err != nil {
		t.Fatalf("login falhou: %v", err)
	}

	renovado, err := svc.Refresh(context.Background(), AudienceRH, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh falhou: %v", err)
	}
	if renovado.RefreshToken == login.RefreshToken {
		t.Error("refresh deveria rotacionar o token")
	}

	// Token antigo foi revogado: segundo uso falha.
	if _, err := svc.Refresh(context.Background(), AudienceRH, login.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("esperava ErrRefreshInvalid no reuso, got %v", err)
	}
}
