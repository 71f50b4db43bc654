package mes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fabwerk/mes-edge-client/pkg/client"
	"github.com/fabwerk/mes-edge-client/pkg/mutate"
	"github.com/fabwerk/mes-edge-client/pkg/querycache"
)

// Service wires the gateway, the query cache coordinator, and the
// mutation executor into typed resource operations.
type Service struct {
	gateway   *client.Client
	queries   *querycache.Coordinator
	mutations *mutate.Executor
}

// NewService creates a resource service.
func NewService(gateway *client.Client, queries *querycache.Coordinator, mutations *mutate.Executor) *Service {
	return &Service{
		gateway:   gateway,
		queries:   queries,
		mutations: mutations,
	}
}

// Query keys. Mutations below reference these to declare what they
// invalidate.
func laborKey(operationID int64) string {
	return fmt.Sprintf("operations:%d:labor", operationID)
}

func materialsKey(operationID int64) string {
	return fmt.Sprintf("operations:%d:materials", operationID)
}

const ncrsKey = "ncrs"

func idempotencyHeader(key string) http.Header {
	header := http.Header{}
	header.Set("Idempotency-Key", key)
	return header
}

// OperationLabor returns the labor bookings for an operation. The
// returned status tells the caller whether the data is fresh or a
// stale value being revalidated in the background.
func (s *Service) OperationLabor(ctx context.Context, operationID int64) ([]LaborEntry, querycache.Status, error) {
	res, err := s.queries.Read(ctx, laborKey(operationID), func(ctx context.Context) (json.RawMessage, error) {
		return s.gateway.Get(ctx, fmt.Sprintf("/api/operations/%d/labor", operationID))
	})
	if err != nil {
		return nil, res.Status, err
	}

	var entries []LaborEntry
	if err := json.Unmarshal(res.Data, &entries); err != nil {
		return nil, res.Status, fmt.Errorf("decode labor entries: %w", err)
	}
	return entries, res.Status, nil
}

// OperationMaterials returns the material lines for an operation.
func (s *Service) OperationMaterials(ctx context.Context, operationID int64) ([]MaterialLine, querycache.Status, error) {
	res, err := s.queries.Read(ctx, materialsKey(operationID), func(ctx context.Context) (json.RawMessage, error) {
		return s.gateway.Get(ctx, fmt.Sprintf("/api/operations/%d/materials", operationID))
	})
	if err != nil {
		return nil, res.Status, err
	}

	var lines []MaterialLine
	if err := json.Unmarshal(res.Data, &lines); err != nil {
		return nil, res.Status, fmt.Errorf("decode material lines: %w", err)
	}
	return lines, res.Status, nil
}

// ListNCRs returns the open non-conformance reports.
func (s *Service) ListNCRs(ctx context.Context) ([]NCR, querycache.Status, error) {
	res, err := s.queries.Read(ctx, ncrsKey, func(ctx context.Context) (json.RawMessage, error) {
		return s.gateway.Get(ctx, "/api/ncrs")
	})
	if err != nil {
		return nil, res.Status, err
	}

	var ncrs []NCR
	if err := json.Unmarshal(res.Data, &ncrs); err != nil {
		return nil, res.Status, fmt.Errorf("decode NCRs: %w", err)
	}
	return ncrs, res.Status, nil
}

// ClockIn books a worker onto a labor entry.
func (s *Service) ClockIn(ctx context.Context, operationID, laborID int64) error {
	return s.laborMutation(ctx, "labor.clock_in", operationID, laborID, "clock-in")
}

// ClockOut releases a worker from a labor entry.
func (s *Service) ClockOut(ctx context.Context, operationID, laborID int64) error {
	return s.laborMutation(ctx, "labor.clock_out", operationID, laborID, "clock-out")
}

// StartBreak begins a break on a labor entry.
func (s *Service) StartBreak(ctx context.Context, operationID, laborID int64) error {
	return s.laborMutation(ctx, "labor.break_start", operationID, laborID, "break/start")
}

// EndBreak ends a break on a labor entry.
func (s *Service) EndBreak(ctx context.Context, operationID, laborID int64) error {
	return s.laborMutation(ctx, "labor.break_end", operationID, laborID, "break/end")
}

func (s *Service) laborMutation(ctx context.Context, name string, operationID, laborID int64, action string) error {
	_, err := s.mutations.Do(ctx, mutate.Mutation{
		Name:        name,
		Invalidates: []string{laborKey(operationID)},
		Fn: func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
			return s.gateway.Post(ctx, fmt.Sprintf("/api/labor/%d/%s", laborID, action), nil, idempotencyHeader(idempotencyKey))
		},
	})
	return err
}

// ConsumeMaterial reports material consumption and invalidates the
// owning operation's material query.
func (s *Service) ConsumeMaterial(ctx context.Context, req ConsumeRequest) error {
	_, err := s.mutations.Do(ctx, mutate.Mutation{
		Name:        "materials.consume",
		Invalidates: []string{materialsKey(req.OperationID)},
		Fn: func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
			return s.gateway.Post(ctx, "/api/materials/consume", req, idempotencyHeader(idempotencyKey))
		},
	})
	return err
}

// CreateNCR opens a non-conformance report.
func (s *Service) CreateNCR(ctx context.Context, req NCRCreate) (*NCR, error) {
	data, err := s.mutations.Do(ctx, mutate.Mutation{
		Name:        "ncrs.create",
		Invalidates: []string{ncrsKey},
		Fn: func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
			return s.gateway.Post(ctx, "/api/ncrs", req, idempotencyHeader(idempotencyKey))
		},
	})
	if err != nil {
		return nil, err
	}

	var ncr NCR
	if err := json.Unmarshal(data, &ncr); err != nil {
		return nil, fmt.Errorf("decode NCR: %w", err)
	}
	return &ncr, nil
}

// UpdateNCRStatus moves a non-conformance report to a new status.
func (s *Service) UpdateNCRStatus(ctx context.Context, ncrID int64, status string) error {
	_, err := s.mutations.Do(ctx, mutate.Mutation{
		Name:        "ncrs.update_status",
		Invalidates: []string{ncrsKey},
		Fn: func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
			body := map[string]string{"status": status}
			return s.gateway.Patch(ctx, fmt.Sprintf("/api/ncrs/%d/status", ncrID), body, idempotencyHeader(idempotencyKey))
		},
	})
	return err
}

// RecordQualityCheck submits an in-process quality check result.
func (s *Service) RecordQualityCheck(ctx context.Context, check QualityCheck) error {
	_, err := s.mutations.Do(ctx, mutate.Mutation{
		Name: "quality.record_check",
		Fn: func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
			return s.gateway.Post(ctx, "/api/quality-checks", check, idempotencyHeader(idempotencyKey))
		},
	})
	return err
}
