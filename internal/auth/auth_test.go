package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestSharedSecretVerifier_RejectsWhenUnconfigured(t *testing.T) {
	v := NewSharedSecretVerifier("")
	require.ErrorIs(t, v.Verify("anything"), ErrUnauthenticated)
}

func TestSharedSecretVerifier_AcceptsMatchingToken(t *testing.T) {
	v := NewSharedSecretVerifier("s3cr3t")
	require.NoError(t, v.Verify("s3cr3t"))
	require.ErrorIs(t, v.Verify("wrong"), ErrUnauthenticated)
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	ts := NewTokenService([]byte("signing-key"), time.Hour)
	token, _, err := ts.Issue("operator-1")
	require.NoError(t, err)

	claims, err := ts.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "operator-1", claims.Subject)
}

func TestTokenService_RejectsExpiredToken(t *testing.T) {
	ts := NewTokenService([]byte("signing-key"), -time.Hour)
	token, _, err := ts.Issue("operator-1")
	require.NoError(t, err)

	_, err = ts.Verify(token)
	require.Error(t, err)
}

func TestTokenService_VerifyFailsClosedWithoutSigningKey(t *testing.T) {
	ts := NewTokenService(nil, time.Hour)
	_, err := ts.Verify("whatever")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestInterceptor_DeniesWhenNeitherModeConfigured(t *testing.T) {
	i := NewInterceptor(NewSharedSecretVerifier(""), nil)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "whatever"))

	_, err := i.Unary()(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	require.Error(t, err)
}

func TestInterceptor_AcceptsValidSharedSecret(t *testing.T) {
	i := NewInterceptor(NewSharedSecretVerifier("s3cr3t"), nil)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "s3cr3t"))

	resp, err := i.Unary()(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		id, ok := IdentityFromContext(ctx)
		require.True(t, ok)
		require.Equal(t, "shared_secret", id.Mode)
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
}

func TestInterceptor_AcceptsValidBearerToken(t *testing.T) {
	ts := NewTokenService([]byte("signing-key"), time.Hour)
	token, _, err := ts.Issue("operator-1")
	require.NoError(t, err)

	i := NewInterceptor(NewSharedSecretVerifier(""), ts)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))

	resp, err := i.Unary()(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		id, ok := IdentityFromContext(ctx)
		require.True(t, ok)
		require.Equal(t, "operator-1", id.Subject)
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
}
