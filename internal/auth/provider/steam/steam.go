package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/yohcop/openid-go"

	"github.com/Housri/steam-auth-public/internal/auth"
	"github.com/Housri/steam-auth-public/internal/auth/provider"
	"github.com/Housri/steam-auth-public/internal/logger"
)

const (
	providerName = "steam"

	DefaultOpenIDEndpoint = "https://steamcommunity.com/openid/login"
	DefaultAPIBaseURL     = "https://api.steampowered.com"

	openIDNamespace = "http://specs.openid.net/auth/2.0"

	maxResponseBytes = 1 << 20
)

var claimedIDPattern = regexp.MustCompile(`^https?://steamcommunity\.com/openid/id/(\d{17})$`)

type Config struct {
	ReturnURL string // callback registered with Steam, without query
	Realm     string // site identity shown on the Steam login page
	APIKey    string // Steam Web API key for profile lookups
	Timeout   time.Duration

	// Overridable for tests.
	OpenIDEndpoint string
	APIBaseURL     string
	HTTPClient     *http.Client

	// NonceStore rejects replayed assertions. Deployments with more than
	// one instance should share it, see RedisNonceStore.
	NonceStore openid.NonceStore
}

// Provider implements Steam's OpenID 2.0 login plus a Web API profile
// lookup. It returns identity facts only; no user/session decisions are
// made here.
type Provider struct {
	returnURL string
	realm     string
	apiKey    string
	endpoint  string
	apiBase   string
	timeout   time.Duration
	client    *http.Client
	nonces    openid.NonceStore
	discovery openid.DiscoveryCache
}

func New(cfg Config) (*Provider, error) {
	if cfg.ReturnURL == "" || cfg.Realm == "" || cfg.APIKey == "" {
		return nil, errors.New("steam config missing required fields")
	}
	if _, err := url.Parse(cfg.ReturnURL); err != nil {
		return nil, fmt.Errorf("steam: invalid return url: %w", err)
	}

	p := &Provider{
		returnURL: cfg.ReturnURL,
		realm:     cfg.Realm,
		apiKey:    cfg.APIKey,
		endpoint:  cfg.OpenIDEndpoint,
		apiBase:   strings.TrimRight(cfg.APIBaseURL, "/"),
		timeout:   cfg.Timeout,
		client:    cfg.HTTPClient,
		nonces:    cfg.NonceStore,
		discovery: openid.NewSimpleDiscoveryCache(),
	}
	if p.endpoint == "" {
		p.endpoint = DefaultOpenIDEndpoint
	}
	if p.apiBase == "" {
		p.apiBase = DefaultAPIBaseURL
	}
	if p.timeout <= 0 {
		p.timeout = 10 * time.Second
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: p.timeout}
	}
	if p.nonces == nil {
		p.nonces = openid.NewSimpleNonceStore()
	}
	return p, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// BeginAuth builds the checkid_setup redirect. The state travels inside
// return_to, which Steam signs, and comes back as a query parameter.
func (p *Provider) BeginAuth(_ context.Context, req provider.AuthRequest) (string, error) {
	returnTo, err := p.returnTo(req.State)
	if err != nil {
		return "", err
	}

	// Steam is an OP identifier with a fixed endpoint, so no discovery is
	// needed to start a login.
	redirect, err := openid.BuildRedirectURL(p.endpoint, "", "", returnTo, p.realm)
	if err != nil {
		return "", fmt.Errorf("steam: build redirect: %w", err)
	}
	return redirect, nil
}

func (p *Provider) returnTo(state string) (string, error) {
	u, err := url.Parse(p.returnURL)
	if err != nil {
		return "", fmt.Errorf("steam: invalid return url: %w", err)
	}
	if state != "" {
		q := u.Query()
		q.Set("state", state)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// CompleteAuth verifies the positive assertion and loads the player's
// public profile.
func (p *Provider) CompleteAuth(ctx context.Context, cb provider.Callback) (*auth.Assertion, error) {
	params := cb.Params

	switch mode := params.Get("openid.mode"); mode {
	case "id_res":
	case "cancel":
		return nil, verificationFailed("login cancelled by user")
	default:
		return nil, verificationFailed("unexpected openid.mode %q", mode)
	}

	if params.Get("openid.ns") != openIDNamespace {
		return nil, verificationFailed("unexpected openid.ns")
	}
	if params.Get("openid.op_endpoint") != p.endpoint {
		return nil, verificationFailed("unexpected op_endpoint %q", params.Get("openid.op_endpoint"))
	}

	claimedID := params.Get("openid.claimed_id")
	if params.Get("openid.identity") != claimedID {
		return nil, verificationFailed("identity and claimed_id differ")
	}
	m := claimedIDPattern.FindStringSubmatch(claimedID)
	if m == nil {
		return nil, verificationFailed("malformed claimed_id %q", claimedID)
	}
	steamID := m[1]

	if err := p.verify(ctx, params); err != nil {
		return nil, err
	}

	assertion, err := p.playerSummary(ctx, steamID)
	if err != nil {
		return nil, err
	}

	logger.Info("steam openid verified", map[string]any{
		"external_id":  steamID,
		"display_name": assertion.DisplayName,
	})

	return assertion, nil
}

// verify runs OpenID 2.0 assertion verification: signed field coverage,
// return_to against our callback, discovery on the claimed id, the
// response nonce and direct verification with Steam.
func (p *Provider) verify(ctx context.Context, params url.Values) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	base := p.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	rp := openid.NewOpenID(&http.Client{
		Transport: contextTransport{ctx: ctx, base: base},
		Timeout:   p.client.Timeout,
	})

	// return_to is compared against this URL, so it is rebuilt from the
	// configured callback rather than from request headers.
	callbackURL := p.returnURL + "?" + params.Encode()

	claimedID, err := rp.Verify(callbackURL, p.discovery, p.nonces)
	if err != nil {
		return verificationFailed("openid: %v", err)
	}
	if claimedID != params.Get("openid.claimed_id") {
		return verificationFailed("verified id %q does not match claimed_id", claimedID)
	}
	return nil
}

// contextTransport binds requests made by the openid client, whose API
// takes no context, to the login's context.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(r.WithContext(t.ctx))
}

type playerSummaries struct {
	Response struct {
		Players []struct {
			SteamID      string `json:"steamid"`
			PersonaName  string `json:"personaname"`
			ProfileURL   string `json:"profileurl"`
			Avatar       string `json:"avatar"`
			AvatarMedium string `json:"avatarmedium"`
			AvatarFull   string `json:"avatarfull"`
		} `json:"players"`
	} `json:"response"`
}

func (p *Provider) playerSummary(ctx context.Context, steamID string) (*auth.Assertion, error) {
	q := url.Values{}
	q.Set("key", p.apiKey)
	q.Set("steamids", steamID)
	endpoint := p.apiBase + "/ISteamUser/GetPlayerSummaries/v0002/?" + q.Encode()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, verificationFailed("build player summary request: %v", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		// the request URL contains the API key; keep it out of the error
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, verificationFailed("player summary: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, verificationFailed("player summary status %d", resp.StatusCode)
	}

	var body playerSummaries
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, verificationFailed("decode player summary: %v", err)
	}

	for _, pl := range body.Response.Players {
		if pl.SteamID != steamID {
			continue
		}
		return &auth.Assertion{
			Provider:     providerName,
			ExternalID:   steamID,
			DisplayName:  pl.PersonaName,
			ProfileURL:   pl.ProfileURL,
			AvatarSmall:  pl.Avatar,
			AvatarMedium: pl.AvatarMedium,
			AvatarLarge:  pl.AvatarFull,
		}, nil
	}

	return nil, verificationFailed("no player summary for %s", steamID)
}

func verificationFailed(format string, args ...any) error {
	return fmt.Errorf("%w: steam: %s", auth.ErrVerificationFailed, fmt.Sprintf(format, args...))
}

var _ provider.Provider = (*Provider)(nil)
