package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	googleProviderName = "google"
	defaultGoogleIssuer = "https://accounts.google.com"
)

// GoogleConfig はGoogle OIDCプロバイダーの設定。
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なIssuer
	IssuerURL string
}

// GoogleProvider はGoogle OpenID Connectによる認証を提供する。
// id_tokenの署名・発行者・audienceを検証してからプロフィールを返す。
type GoogleProvider struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogleProvider はOIDCディスカバリを行いGoogleProviderを生成する。
func NewGoogleProvider(ctx context.Context, config GoogleConfig) (*GoogleProvider, error) {
	if config.ClientID == "" || config.ClientSecret == "" || config.RedirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}
	issuer := config.IssuerURL
	if issuer == "" {
		issuer = defaultGoogleIssuer
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init google oidc provider: %w", err)
	}

	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: config.ClientID}),
	}, nil
}

// Name はプロバイダー名を返す。
func (p *GoogleProvider) Name() string {
	return googleProviderName
}

// AuthCodeURL はPKCE(S256)付きの認可URLを生成する。
func (p *GoogleProvider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

// googleClaims はid_tokenから取り出すクレーム。
type googleClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Exchange は認可コードを交換し、検証済みid_tokenのクレームからプロフィールを生成する。
func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier string) (*ProviderProfile, error) {
	token, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("google token exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("google did not return id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("google id_token verification failed: %w", err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("google id_token claims parse failed: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("google id_token missing sub claim")
	}

	var emails []string
	// 未検証のアドレスはプロフィールに載せない
	if claims.Email != "" && claims.EmailVerified {
		emails = []string{claims.Email}
	}

	return &ProviderProfile{
		ProviderName: googleProviderName,
		ProviderID:   claims.Subject,
		DisplayName:  claims.Name,
		AvatarURL:    claims.Picture,
		Emails:       emails,
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleProvider)(nil)
