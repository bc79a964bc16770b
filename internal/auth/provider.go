package auth

import (
	"context"
	"sort"
)

// OAuthProvider は外部OAuthプロバイダーのアダプター。
// 認可URLの生成とコード交換を行い、正規化済みのプロフィールを返す。
// ユーザーの作成やセッションの発行は行わない。
type OAuthProvider interface {
	// Name はルーティングに使うプロバイダー名を返す（例: "github"）。
	Name() string
	// AuthCodeURL はstateとPKCEのcode_verifierから認可URLを生成する。
	AuthCodeURL(state, verifier string) string
	// Exchange は認可コードを交換し、プロフィールを取得する。
	Exchange(ctx context.Context, code, verifier string) (*ProviderProfile, error)
}

// Registry は設定済みのOAuthプロバイダーを名前で引けるようにする。
type Registry struct {
	providers map[string]OAuthProvider
}

// NewRegistry はプロバイダーを登録したRegistryを生成する。
// 同名のプロバイダーは後のものが優先される。
func NewRegistry(list ...OAuthProvider) *Registry {
	m := make(map[string]OAuthProvider, len(list))
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get は名前でプロバイダーを返す。
func (r *Registry) Get(name string) (OAuthProvider, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.providers[name]
	return p, ok
}

// Names は登録済みのプロバイダー名を昇順で返す。
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
