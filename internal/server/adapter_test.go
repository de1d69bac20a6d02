package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ziXnOrg/ORCA/internal/auth"
	"github.com/ziXnOrg/ORCA/internal/identity"
	"github.com/ziXnOrg/ORCA/internal/orchestrator"
)

func TestMapErr_KnownSentinels(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{orchestrator.ErrPermissionDenied, codes.PermissionDenied},
		{orchestrator.ErrBudgetExceeded, codes.ResourceExhausted},
		{orchestrator.ErrUnknownRun, codes.NotFound},
		{orchestrator.ErrWALAppendFailed, codes.Unavailable},
		{identity.ErrBadProtocolVersion, codes.FailedPrecondition},
		{identity.ErrTTLExpired, codes.DeadlineExceeded},
		{auth.ErrUnauthenticated, codes.Unauthenticated},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		st, ok := status.FromError(mapErr(tc.err))
		require.True(t, ok)
		require.Equal(t, tc.code, st.Code())
	}
}

func TestMapErr_WrappedSentinel(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), orchestrator.ErrBudgetExceeded)
	st, ok := status.FromError(mapErr(wrapped))
	require.True(t, ok)
	require.Equal(t, codes.ResourceExhausted, st.Code())
}

func TestRateLimited_RestrictsToMutatingMethods(t *testing.T) {
	require.True(t, rateLimited("orca.v1.OrchestratorService/SubmitTask"))
	require.True(t, rateLimited("orca.v1.OrchestratorService/StartRun"))
	require.False(t, rateLimited("orca.v1.OrchestratorService/StreamEvents"))
	require.False(t, rateLimited("orca.v1.OrchestratorService/FetchResult"))
}
