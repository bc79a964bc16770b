package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	githubProviderName = "github"
	defaultGitHubAPIURL = "https://api.github.com"
)

// GitHubConfig はGitHub OAuthプロバイダーの設定。
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	APIURL   string
}

// GitHubProvider はGitHub OAuth 2.0による認証を提供する。
type GitHubProvider struct {
	oauth  *oauth2.Config
	apiURL string
}

// NewGitHubProvider はGitHubProviderを生成する。
func NewGitHubProvider(config GitHubConfig) *GitHubProvider {
	endpoint := github.Endpoint
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		endpoint.TokenURL = config.TokenURL
	}
	apiURL := strings.TrimRight(config.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultGitHubAPIURL
	}

	return &GitHubProvider{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		apiURL: apiURL,
	}
}

// Name はプロバイダー名を返す。
func (p *GitHubProvider) Name() string {
	return githubProviderName
}

// AuthCodeURL はPKCE(S256)付きの認可URLを生成する。
func (p *GitHubProvider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// githubUser はGET /userのレスポンス。
type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email"`
}

// githubEmail はGET /user/emailsのレスポンス要素。
type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Exchange は認可コードをトークンに交換し、GitHubのプロフィールを取得する。
func (p *GitHubProvider) Exchange(ctx context.Context, code, verifier string) (*ProviderProfile, error) {
	token, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("github token exchange failed: %w", err)
	}
	client := p.oauth.Client(ctx, token)

	var user githubUser
	if err := p.getJSON(ctx, client, "/user", &user); err != nil {
		return nil, fmt.Errorf("failed to fetch github user: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("github user response has no id")
	}

	// user:emailスコープが拒否されることがあるため、取得失敗はプロフィールのメールで代替する
	var emails []githubEmail
	if err := p.getJSON(ctx, client, "/user/emails", &emails); err != nil {
		slog.Warn("failed to fetch github emails; using public profile email",
			slog.Int64("github_user_id", user.ID),
			slog.String("error", err.Error()),
		)
		emails = nil
	}

	return &ProviderProfile{
		ProviderName: githubProviderName,
		ProviderID:   strconv.FormatInt(user.ID, 10),
		DisplayName:  user.Name,
		AvatarURL:    user.AvatarURL,
		Emails:       orderGitHubEmails(emails, user.Email),
	}, nil
}

func (p *GitHubProvider) getJSON(ctx context.Context, client *http.Client, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return nil
}

// orderGitHubEmails は検証済み・プライマリのアドレスを先頭に並べる。
// 一覧が空の場合はプロフィールの公開メールを使う。
func orderGitHubEmails(emails []githubEmail, fallback string) []string {
	sort.SliceStable(emails, func(i, j int) bool {
		if emails[i].Primary != emails[j].Primary {
			return emails[i].Primary
		}
		return emails[i].Verified && !emails[j].Verified
	})

	out := make([]string, 0, len(emails)+1)
	for _, e := range emails {
		if e.Email != "" {
			out = append(out, e.Email)
		}
	}
	if len(out) == 0 && fallback != "" {
		out = append(out, fallback)
	}
	return out
}

// compile-time interface check
var _ OAuthProvider = (*GitHubProvider)(nil)
