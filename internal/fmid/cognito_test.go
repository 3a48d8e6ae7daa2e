package fmid

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCognitoAPI struct {
	initiateAuthFunc func(ctx context.Context, params *cognitoidentityprovider.InitiateAuthInput) (*cognitoidentityprovider.InitiateAuthOutput, error)
}

func (f *fakeCognitoAPI) InitiateAuth(ctx context.Context, params *cognitoidentityprovider.InitiateAuthInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error) {
	return f.initiateAuthFunc(ctx, params)
}

// newTestProvider builds a provider with a primed private pool cache and
// a fake Cognito client, skipping all network access. The non-default
// descriptor URL keeps the process-wide cache untouched.
func newTestProvider(fake *fakeCognitoAPI) *CognitoProvider {
	p := NewCognitoProvider("http://unused.invalid/pool.json", nil, nil)
	p.pool.cfg = &PoolConfig{UserPoolID: "us-west-2_testpool", ClientID: "test-client-id"}
	p.client = fake

	return p
}

func authResult(access, id, refresh string) *types.AuthenticationResultType {
	result := &types.AuthenticationResultType{
		AccessToken: aws.String(access),
		IdToken:     aws.String(id),
	}

	if refresh != "" {
		result.RefreshToken = aws.String(refresh)
	}

	return result
}

func TestCognitoProvider_Authenticate(t *testing.T) {
	fake := &fakeCognitoAPI{
		initiateAuthFunc: func(_ context.Context, params *cognitoidentityprovider.InitiateAuthInput) (*cognitoidentityprovider.InitiateAuthOutput, error) {
			assert.Equal(t, types.AuthFlowTypeUserPasswordAuth, params.AuthFlow)
			assert.Equal(t, "test-client-id", aws.ToString(params.ClientId))
			assert.Equal(t, "user@example.com", params.AuthParameters["USERNAME"])
			assert.Equal(t, "hunter2", params.AuthParameters["PASSWORD"])

			return &cognitoidentityprovider.InitiateAuthOutput{
				AuthenticationResult: authResult("a", "i", "r"),
			}, nil
		},
	}

	p := newTestProvider(fake)

	session, err := p.Authenticate(context.Background(), "user@example.com", "hunter2")
	require.NoError(t, err)

	assert.Equal(t, &Session{AccessToken: "a", IdentityToken: "i", RefreshToken: "r"}, session)
}

func TestCognitoProvider_RefreshCarriesRefreshToken(t *testing.T) {
	fake := &fakeCognitoAPI{
		initiateAuthFunc: func(_ context.Context, params *cognitoidentityprovider.InitiateAuthInput) (*cognitoidentityprovider.InitiateAuthOutput, error) {
			assert.Equal(t, types.AuthFlowTypeRefreshTokenAuth, params.AuthFlow)
			assert.Equal(t, "old-refresh", params.AuthParameters["REFRESH_TOKEN"])

			// Cognito omits the refresh token on this flow.
			return &cognitoidentityprovider.InitiateAuthOutput{
				AuthenticationResult: authResult("a2", "i2", ""),
			}, nil
		},
	}

	p := newTestProvider(fake)

	session, err := p.Refresh(context.Background(), &Session{
		AccessToken:   "a1",
		IdentityToken: "i1",
		RefreshToken:  "old-refresh",
	})
	require.NoError(t, err)

	assert.Equal(t, "old-refresh", session.RefreshToken)
	assert.Equal(t, "i2", session.IdentityToken)
}

func TestCognitoProvider_AuthenticateErrorWrapped(t *testing.T) {
	authErr := errors.New("NotAuthorizedException")
	fake := &fakeCognitoAPI{
		initiateAuthFunc: func(context.Context, *cognitoidentityprovider.InitiateAuthInput) (*cognitoidentityprovider.InitiateAuthOutput, error) {
			return nil, authErr
		},
	}

	p := newTestProvider(fake)

	_, err := p.Authenticate(context.Background(), "u", "p")
	require.ErrorIs(t, err, authErr)
}

func TestCognitoProvider_MissingTokensRejected(t *testing.T) {
	fake := &fakeCognitoAPI{
		initiateAuthFunc: func(context.Context, *cognitoidentityprovider.InitiateAuthInput) (*cognitoidentityprovider.InitiateAuthOutput, error) {
			// A challenge response has no AuthenticationResult; a partial
			// session must never be constructed from it.
			return &cognitoidentityprovider.InitiateAuthOutput{}, nil
		},
	}

	p := newTestProvider(fake)

	_, err := p.Authenticate(context.Background(), "u", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing tokens")
}

func TestCognitoProvider_PoolConfigErrorAbortsAuth(t *testing.T) {
	// Unreachable descriptor endpoint: acquisition aborts before any
	// Cognito call.
	p := NewCognitoProvider("http://127.0.0.1:1/descriptor.json", nil, nil)
	p.client = &fakeCognitoAPI{
		initiateAuthFunc: func(context.Context, *cognitoidentityprovider.InitiateAuthInput) (*cognitoidentityprovider.InitiateAuthOutput, error) {
			t.Fatal("cognito must not be called when the descriptor fetch fails")

			return nil, nil
		},
	}

	_, err := p.Authenticate(context.Background(), "u", "p")
	require.ErrorIs(t, err, ErrConfigFetch)
}

func TestCognitoProvider_DescriptorFetchedOnceAcrossAcquisitions(t *testing.T) {
	srv, hits := newDescriptorServer(t, nil)

	p := NewCognitoProvider(srv.URL, nil, nil)
	p.client = &fakeCognitoAPI{
		initiateAuthFunc: func(context.Context, *cognitoidentityprovider.InitiateAuthInput) (*cognitoidentityprovider.InitiateAuthOutput, error) {
			return &cognitoidentityprovider.InitiateAuthOutput{
				AuthenticationResult: authResult("a", "i", "r"),
			}, nil
		},
	}

	m := NewTokenManager(p, "u", "p", "", nil)

	_, err := m.AuthorizationHeader(context.Background())
	require.NoError(t, err)

	// Force the session away; the descriptor cache must survive.
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()

	_, err = m.AuthorizationHeader(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, hits.Load())
}

func TestCognitoProvider_MalformedPoolID(t *testing.T) {
	p := NewCognitoProvider("http://unused.invalid/pool.json", nil, nil)
	p.pool.cfg = &PoolConfig{UserPoolID: "nounderscorehere", ClientID: "c"}

	_, err := p.Authenticate(context.Background(), "u", "p")
	require.ErrorIs(t, err, ErrConfigFetch)
	assert.Contains(t, err.Error(), "malformed user pool id")
}
