package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/recadastro/internal/auth"
	"github.com/gestaozabele/recadastro/internal/repo"
	"github.com/gestaozabele/recadastro/internal/servidor"
	"github.com/gestaozabele/recadastro/internal/util"
)

var (
	// ErrInvalidCredentials indica falha na autenticação.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrAccountDisabled indica conta desativada.
	ErrAccountDisabled = errors.New("conta desativada")
	// ErrRefreshInvalid indica refresh token inválido ou expirado.
	ErrRefreshInvalid = errors.New("refresh token inválido")
)

const (
	// AudienceRH identifica sessões do backoffice de RH.
	AudienceRH = "rh"
	// AudienceServidor identifica sessões do portal do servidor.
	AudienceServidor = "servidor"
)

type usuarioRepository interface {
	GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error)
	GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error)
	InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.TokenRefresh, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.TokenRefresh, error)
	InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
}

type servidorRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*servidor.Servidor, error)
	GetByEmail(ctx context.Context, email string) (*servidor.Servidor, error)
	GetByCPF(ctx context.Context, cpf string) (*servidor.Servidor, error)
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthService concentra regras de autenticação e sessões.
type AuthService struct {
	repo       usuarioRepository
	servidores servidorRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
}

// NewAuthService cria novo serviço.
func NewAuthService(r *repo.Queries, servidores *servidor.Repository, redisClient *redis.Client, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *AuthService {
	return &AuthService{repo: r, servidores: servidores, redis: redisClient, jwt: jwtMgr, refreshTTL: refreshTTL}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// LoginResult representa retorno padrão de autenticações.
type LoginResult struct {
	Audience      string
	AccessToken   string
	RefreshToken  string
	Subject       uuid.UUID
	Roles         []string
	Profile       any
	RefreshHash   string
	RefreshExpiry time.Time
}

// RHProfile descreve colaborador do backoffice de RH.
type RHProfile struct {
	ID    string `json:"id"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
	Papel string `json:"papel"`
}

// ServidorProfile descreve servidor autenticado no portal.
type ServidorProfile struct {
	ID        string  `json:"id"`
	Nome      string  `json:"nome"`
	Matricula string  `json:"matricula"`
	Email     *string `json:"email"`
}

// LoginRH autentica colaboradores do backoffice.
func (s *AuthService) LoginRH(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repo.GetUsuarioByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("login rh: usuário não encontrado")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.Verify(password, user.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Msg("login rh: verify password failed")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		log.Warn().Msg("login rh: senha inválida")
		return nil, ErrInvalidCredentials
	}

	return s.loginRHFromUser(ctx, user)
}

func (s *AuthService) loginRHFromUser(ctx context.Context, user repo.Usuario) (*LoginResult, error) {
	if !user.Ativo {
		return nil, ErrAccountDisabled
	}

	roles := rolesDoUsuario(user)
	if len(roles) == 0 {
		return nil, ErrInvalidCredentials
	}

	profile := &RHProfile{
		ID:    user.ID.String(),
		Nome:  user.Nome,
		Email: user.Email,
		Papel: user.Papel,
	}

	return s.issueTokens(ctx, user.ID, AudienceRH, roles, profile)
}

// LoginServidor autentica servidor por e-mail ou CPF.
func (s *AuthService) LoginServidor(ctx context.Context, identificador, password string) (*LoginResult, error) {
	sv, err := s.lookupServidor(ctx, identificador)
	if err != nil {
		if errors.Is(err, servidor.ErrNotFound) {
			log.Warn().Msg("login servidor: não encontrado")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !sv.Ativo {
		return nil, ErrAccountDisabled
	}
	if sv.SenhaHash == nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := auth.Verify(password, *sv.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Msg("login servidor: verify password failed")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		log.Warn().Msg("login servidor: senha inválida")
		return nil, ErrInvalidCredentials
	}

	profile := &ServidorProfile{
		ID:        sv.ID.String(),
		Nome:      sv.Nome,
		Matricula: sv.Matricula,
		Email:     sv.Email,
	}

	return s.issueTokens(ctx, sv.ID, AudienceServidor, []string{"SERVIDOR"}, profile)
}

func (s *AuthService) lookupServidor(ctx context.Context, identificador string) (*servidor.Servidor, error) {
	identificador = strings.TrimSpace(identificador)
	if strings.Contains(identificador, "@") {
		return s.servidores.GetByEmail(ctx, identificador)
	}

	cpf := util.NormalizeCPF(identificador)
	if !util.ValidateCPF(cpf) {
		return nil, servidor.ErrNotFound
	}
	return s.servidores.GetByCPF(ctx, cpf)
}

func (s *AuthService) issueTokens(ctx context.Context, subject uuid.UUID, audience string, roles []string, profile any) (*LoginResult, error) {
	token, _, err := s.jwt.GenerateAccessToken(subject.String(), audience, roles)
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	expires := util.Now().Add(s.refreshTTL)
	if err := s.persistRefresh(ctx, subject, audience, refreshHash, expires); err != nil {
		return nil, err
	}

	return &LoginResult{
		Audience:      audience,
		AccessToken:   token,
		RefreshToken:  rawRefresh,
		Subject:       subject,
		Roles:         roles,
		Profile:       profile,
		RefreshHash:   refreshHash,
		RefreshExpiry: expires,
	}, nil
}

// Refresh troca refresh token por novos tokens.
func (s *AuthService) Refresh(ctx context.Context, audience, rawToken string) (*LoginResult, error) {
	if rawToken == "" {
		return nil, ErrRefreshInvalid
	}

	hash := auth.HashRefreshToken(rawToken)
	record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	if record.Revogado || time.Now().UTC().After(record.Expiracao) || record.Audience != audience {
		return nil, ErrRefreshInvalid
	}

	redisKey := auth.RefreshRedisKey(audience, hash)
	status, err := s.redis.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		return nil, err
	}
	if status != "active" {
		return nil, ErrRefreshInvalid
	}

	var result *LoginResult
	switch audience {
	case AudienceRH:
		user, err := s.repo.GetUsuarioByID(ctx, record.Subject)
		if err != nil {
			return nil, err
		}
		result, err = s.loginRHFromUser(ctx, user)
		if err != nil {
			return nil, err
		}
	case AudienceServidor:
		sv, err := s.servidores.GetByID(ctx, record.Subject)
		if err != nil {
			return nil, err
		}
		if !sv.Ativo {
			return nil, ErrAccountDisabled
		}
		profile := &ServidorProfile{
			ID:        sv.ID.String(),
			Nome:      sv.Nome,
			Matricula: sv.Matricula,
			Email:     sv.Email,
		}
		result, err = s.issueTokens(ctx, sv.ID, audience, []string{"SERVIDOR"}, profile)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrRefreshInvalid
	}

	// Revoga token anterior (DB + Redis)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return nil, err
	}

	return result, nil
}

// Logout revoga refresh token atual.
func (s *AuthService) Logout(ctx context.Context, audience, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	hash := auth.HashRefreshToken(rawToken)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	redisKey := auth.RefreshRedisKey(audience, hash)
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// GetMe retorna perfil completo para subject/audience.
func (s *AuthService) GetMe(ctx context.Context, audience string, subject uuid.UUID) (any, []string, error) {
	switch audience {
	case AudienceRH:
		user, err := s.repo.GetUsuarioByID(ctx, subject)
		if err != nil {
			return nil, nil, err
		}
		roles := rolesDoUsuario(user)
		if len(roles) == 0 {
			return nil, nil, ErrInvalidCredentials
		}
		profile := &RHProfile{
			ID:    user.ID.String(),
			Nome:  user.Nome,
			Email: user.Email,
			Papel: user.Papel,
		}
		return profile, roles, nil
	case AudienceServidor:
		sv, err := s.servidores.GetByID(ctx, subject)
		if err != nil {
			return nil, nil, err
		}
		profile := &ServidorProfile{
			ID:        sv.ID.String(),
			Nome:      sv.Nome,
			Matricula: sv.Matricula,
			Email:     sv.Email,
		}
		return profile, []string{"SERVIDOR"}, nil
	default:
		return nil, nil, errors.New("audience desconhecida")
	}
}

func (s *AuthService) persistRefresh(ctx context.Context, subject uuid.UUID, audience, hash string, expires time.Time) error {
	_, err := s.repo.InsertRefreshToken(ctx, repo.InsertRefreshTokenParams{
		ID:        uuid.New(),
		Subject:   subject,
		Audience:  audience,
		TokenHash: hash,
		Expiracao: expires,
		CriadoEm:  util.Now(),
	})
	if err != nil {
		return err
	}

	if err := s.repo.InvalidateOtherRefreshTokens(ctx, subject, audience, hash); err != nil {
		return err
	}

	return s.redis.Set(ctx, auth.RefreshRedisKey(audience, hash), "active", time.Until(expires)).Err()
}

func rolesDoUsuario(user repo.Usuario) []string {
	papel := strings.ToUpper(strings.TrimSpace(user.Papel))
	if papel == "" {
		return nil
	}
	return []string{papel}
}
