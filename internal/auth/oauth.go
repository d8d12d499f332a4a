package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"

	"github.com/redmonkez12/chatbot-auth/internal/config"
	"github.com/redmonkez12/chatbot-auth/internal/user"
)

// ErrUpstream wraps every failure talking to the identity provider
var ErrUpstream = errors.New("oauth provider request failed")

// OAuthProfile is the subset of the provider's userinfo we keep
type OAuthProfile struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

// OAuthProvider runs the authorization code flow against one provider
type OAuthProvider interface {
	Method() user.Method
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*OAuthProfile, error)
}

// GoogleProvider exchanges Google authorization codes for profiles
type GoogleProvider struct {
	oauth       *oauth2.Config
	httpClient  *http.Client
	client      *resty.Client
	userInfoURL string
}

func NewGoogleProvider(cfg config.OAuthConfig) *GoogleProvider {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURI,
			Scopes:       cfg.GoogleScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.GoogleAuthURL,
				TokenURL: cfg.GoogleTokenURL,
				// client id and secret travel in the form body
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient:  httpClient,
		client:      resty.NewWithClient(httpClient),
		userInfoURL: cfg.GoogleUserInfoURL,
	}
}

func (p *GoogleProvider) Method() user.Method {
	return user.MethodGoogle
}

// AuthCodeURL is where the browser is sent to consent
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the code for an access token and fetches the profile with it
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*OAuthProfile, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", ErrUpstream)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %v", ErrUpstream, err)
	}

	var profile OAuthProfile
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(token.AccessToken).
		SetResult(&profile).
		Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo: %v", ErrUpstream, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: userinfo returned %d", ErrUpstream, resp.StatusCode())
	}
	if profile.Email == "" {
		return nil, fmt.Errorf("%w: profile has no email", ErrUpstream)
	}

	return &profile, nil
}
