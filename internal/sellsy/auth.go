package sellsy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// authorizer attaches platform credentials to an outbound request.
// invalidate drops any cached session so the next authorize re-authenticates.
type authorizer interface {
	authorize(ctx context.Context, req *http.Request) error
	invalidate()
}

// oauth2Auth implements the client-credentials flow: a Basic-auth token
// exchange at the login endpoint, then Bearer usage with the cached token
// until expiry.
type oauth2Auth struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   HTTPClient
	logger       *zap.Logger

	mu     sync.Mutex
	token  string
	expiry time.Time
	now    func() time.Time
}

func newOAuth2Auth(clientID, clientSecret, tokenURL string, httpClient HTTPClient, logger *zap.Logger) *oauth2Auth {
	return &oauth2Auth{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		httpClient:   httpClient,
		logger:       logger,
		now:          time.Now,
	}
}

func (a *oauth2Auth) authorize(ctx context.Context, req *http.Request) error {
	token, err := a.accessToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (a *oauth2Auth) invalidate() {
	a.mu.Lock()
	a.token = ""
	a.mu.Unlock()
}

func (a *oauth2Auth) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && a.now().Before(a.expiry) {
		return a.token, nil
	}

	a.logger.Info("fetching sellsy oauth2 token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL,
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(a.clientID + ":" + a.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, truncate(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access token")
	}

	a.token = payload.AccessToken
	if payload.ExpiresIn > 0 {
		// Refresh one minute early to avoid racing the expiry.
		a.expiry = a.now().Add(time.Duration(payload.ExpiresIn)*time.Second - time.Minute)
	} else {
		a.expiry = a.now().Add(50 * time.Minute)
	}
	return a.token, nil
}

// oauth1Auth signs requests with the PLAINTEXT method used by the legacy
// apifeed API: the signature is the percent-encoded consumer and user
// secrets joined by "&". There is no session to cache or invalidate.
type oauth1Auth struct {
	consumerToken  string
	consumerSecret string
	userToken      string
	userSecret     string
	nonce          func() string
	now            func() time.Time
}

func newOAuth1Auth(consumerToken, consumerSecret, userToken, userSecret string) *oauth1Auth {
	return &oauth1Auth{
		consumerToken:  consumerToken,
		consumerSecret: consumerSecret,
		userToken:      userToken,
		userSecret:     userSecret,
		nonce:          uuid.NewString,
		now:            time.Now,
	}
}

func (a *oauth1Auth) authorize(_ context.Context, req *http.Request) error {
	signature := url.QueryEscape(a.consumerSecret) + "&" + url.QueryEscape(a.userSecret)
	params := []struct{ k, v string }{
		{"oauth_consumer_key", a.consumerToken},
		{"oauth_token", a.userToken},
		{"oauth_nonce", a.nonce()},
		{"oauth_timestamp", strconv.FormatInt(a.now().Unix(), 10)},
		{"oauth_signature_method", "PLAINTEXT"},
		{"oauth_version", "1.0"},
		{"oauth_signature", signature},
	}

	var b strings.Builder
	b.WriteString("OAuth ")
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%q", p.k, url.QueryEscape(p.v))
	}
	req.Header.Set("Authorization", b.String())
	return nil
}

func (a *oauth1Auth) invalidate() {}
