// Package server hosts ORCA's gRPC surface: translating api/orcapb
// requests into internal/orchestrator.Service calls, mapping its
// sentinel errors onto gRPC status codes, and serving both the RPC
// port and the Prometheus /metrics endpoint behind one listener setup
// (SPEC_FULL.md §4.3 "Transport").
package server

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ziXnOrg/ORCA/api/orcapb"
	"github.com/ziXnOrg/ORCA/internal/auth"
	"github.com/ziXnOrg/ORCA/internal/identity"
	"github.com/ziXnOrg/ORCA/internal/orchestrator"
)

// orchestratorAdapter implements orcapb.OrchestratorServer over an
// internal/orchestrator.Service. It owns no state of its own; every
// call is a direct translation.
type orchestratorAdapter struct {
	svc *orchestrator.Service
}

func newOrchestratorAdapter(svc *orchestrator.Service) *orchestratorAdapter {
	return &orchestratorAdapter{svc: svc}
}

var _ orcapb.OrchestratorServer = (*orchestratorAdapter)(nil)

func (a *orchestratorAdapter) StartRun(ctx context.Context, req *orcapb.StartRunRequest) (*orcapb.StartRunResponse, error) {
	runID, label, err := a.svc.StartRun(ctx, orchestrator.StartRunRequest{
		Label:  req.Label,
		Limits: req.Limits,
		Env:    req.Envelope,
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return &orcapb.StartRunResponse{RunID: runID, Label: label}, nil
}

func (a *orchestratorAdapter) SubmitTask(ctx context.Context, req *orcapb.SubmitTaskRequest) (*orcapb.SubmitTaskResponse, error) {
	result, err := a.svc.SubmitTask(ctx, req.RunID, req.Envelope)
	if err != nil {
		return nil, mapErr(err)
	}
	return &orcapb.SubmitTaskResponse{Duplicate: result.Duplicate, Envelope: result.Envelope}, nil
}

func (a *orchestratorAdapter) FetchResult(ctx context.Context, req *orcapb.FetchResultRequest) (*orcapb.FetchResultResponse, error) {
	env, found, err := a.svc.FetchResult(ctx, req.RunID)
	if err != nil {
		return nil, mapErr(err)
	}
	return &orcapb.FetchResultResponse{Found: found, Envelope: env}, nil
}

func (a *orchestratorAdapter) StreamEvents(req *orcapb.StreamEventsRequest, stream orcapb.OrchestratorService_StreamEventsServer) error {
	recCh, errCh := a.svc.StreamEvents(stream.Context(), orchestrator.StreamEventsRequest{
		RunID:        req.RunID,
		StartEventID: req.StartEventID,
		SinceTSMS:    req.SinceTSMS,
		MaxEvents:    req.MaxEvents,
	})
	for {
		select {
		case rec, ok := <-recCh:
			if !ok {
				recCh = nil
				continue
			}
			resp := &orcapb.StreamEventsResponse{
				ID:        rec.ID,
				TSMillis:  rec.TSMillis,
				EventType: string(rec.EventType),
				RunID:     rec.RunID,
				TraceID:   rec.TraceID,
				Payload:   []byte(rec.Payload),
				Metadata:  rec.Metadata,
			}
			if err := stream.Send(resp); err != nil {
				return err
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				if recCh == nil {
					return nil
				}
				continue
			}
			if err != nil {
				return mapErr(err)
			}
		}
		if recCh == nil && errCh == nil {
			return nil
		}
	}
}

// mapErr translates a Service/auth sentinel error into the gRPC status
// code SPEC_FULL.md §4.3 assigns it. Unrecognized errors become
// Internal rather than leaking their Go type to callers.
func mapErr(err error) error {
	switch {
	case errors.Is(err, orchestrator.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, orchestrator.ErrBudgetExceeded):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, orchestrator.ErrUnknownRun):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, orchestrator.ErrWALAppendFailed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, identity.ErrBadProtocolVersion):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, identity.ErrTTLExpired):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, auth.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
