package fmid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// cognitoAPI is the subset of the Cognito identity-provider API this
// provider drives. Defined at the consumer so tests can substitute a fake.
type cognitoAPI interface {
	InitiateAuth(ctx context.Context, params *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
}

// CognitoProvider implements Provider against an Amazon Cognito user
// pool. The pool and client identifiers come from the remote descriptor,
// fetched lazily on first use and memoized for the process lifetime.
type CognitoProvider struct {
	pool       *poolConfigCache
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	client cognitoAPI
}

// NewCognitoProvider creates a Cognito-backed identity provider.
// poolConfigURL overrides the descriptor endpoint when non-empty
// (tests, on-prem mirrors); httpClient and logger may be nil.
func NewCognitoProvider(poolConfigURL string, httpClient *http.Client, logger *slog.Logger) *CognitoProvider {
	if logger == nil {
		logger = slog.Default()
	}

	pool := defaultPoolCache
	if poolConfigURL != "" || httpClient != nil {
		pool = newPoolConfigCache(poolConfigURL, httpClient)
	}

	return &CognitoProvider{
		pool:       pool,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Authenticate performs a full username/password sign-in.
func (p *CognitoProvider) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	client, cfg, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("cognito authenticate", slog.String("username", username))

	out, err := client.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(cfg.ClientID),
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fmid: cognito authenticate: %w", err)
	}

	return sessionFromResult(out.AuthenticationResult, "")
}

// Refresh exchanges the session's refresh token for a new session.
// Cognito does not rotate the refresh token on this flow, so the
// existing one is carried into the new session.
func (p *CognitoProvider) Refresh(ctx context.Context, session *Session) (*Session, error) {
	client, cfg, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("cognito refresh")

	out, err := client.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeRefreshTokenAuth,
		ClientId: aws.String(cfg.ClientID),
		AuthParameters: map[string]string{
			"REFRESH_TOKEN": session.RefreshToken,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fmid: cognito refresh: %w", err)
	}

	return sessionFromResult(out.AuthenticationResult, session.RefreshToken)
}

// ensureClient resolves the pool descriptor and lazily builds the
// Cognito client for the pool's region. InitiateAuth is an
// unauthenticated API, so anonymous credentials suffice.
func (p *CognitoProvider) ensureClient(ctx context.Context) (cognitoAPI, *PoolConfig, error) {
	cfg, err := p.pool.get(ctx)
	if err != nil {
		return nil, nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		// Pool IDs are "<region>_<id>".
		region, _, ok := strings.Cut(cfg.UserPoolID, "_")
		if !ok {
			return nil, nil, fmt.Errorf("%w: malformed user pool id %q", ErrConfigFetch, cfg.UserPoolID)
		}

		opts := cognitoidentityprovider.Options{
			Region:      region,
			Credentials: aws.AnonymousCredentials{},
		}

		if p.httpClient != nil {
			opts.HTTPClient = p.httpClient
		}

		p.client = cognitoidentityprovider.New(opts)
	}

	return p.client, cfg, nil
}

// sessionFromResult builds a full Session from a Cognito authentication
// result, or fails; a partial session is never returned.
func sessionFromResult(result *types.AuthenticationResultType, refreshToken string) (*Session, error) {
	if result == nil || result.AccessToken == nil || result.IdToken == nil {
		return nil, errors.New("fmid: cognito response missing tokens")
	}

	if result.RefreshToken != nil {
		refreshToken = *result.RefreshToken
	}

	if refreshToken == "" {
		return nil, errors.New("fmid: cognito response missing refresh token")
	}

	return &Session{
		AccessToken:   *result.AccessToken,
		IdentityToken: *result.IdToken,
		RefreshToken:  refreshToken,
	}, nil
}
