// AngelaMos | 2026
// service.go

package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/carterperez-dev/licensegate/internal/config"
	"github.com/carterperez-dev/licensegate/internal/core"
)

// LicenseGate answers whether a license is presently usable. Writes to
// the sync store are gated on it.
type LicenseGate interface {
	CheckUsable(ctx context.Context, licenseKey string) error
}

type Service struct {
	repo Repository
	gate LicenseGate
	cfg  config.SyncConfig
}

func NewService(repo Repository, gate LicenseGate, cfg config.SyncConfig) *Service {
	return &Service{
		repo: repo,
		gate: gate,
		cfg:  cfg,
	}
}

// Upsert writes one value under (userID, dataType, dataKey). Concurrent
// writers on the same key overwrite each other last-writer-wins, but
// each gets the true resulting version back, so a client can notice its
// write did not follow its expected predecessor and reconcile.
func (s *Service) Upsert(
	ctx context.Context,
	userID string,
	req UpsertRequest,
) (*UpsertResponse, error) {
	if err := s.validateItem(req.DataType, req.Value); err != nil {
		return nil, err
	}

	if err := s.gate.CheckUsable(ctx, req.LicenseKey); err != nil {
		return nil, err
	}

	version, err := s.repo.Upsert(ctx, &Item{
		UserID:   userID,
		DataType: req.DataType,
		DataKey:  req.DataKey,
		Value:    req.Value,
		DeviceID: req.DeviceID,
	})
	if err != nil {
		return nil, err
	}

	return &UpsertResponse{
		DataType: req.DataType,
		DataKey:  req.DataKey,
		Version:  version,
	}, nil
}

// BulkUpsert applies items independently: the license gate is checked
// once up front, then each item succeeds or fails on its own.
func (s *Service) BulkUpsert(
	ctx context.Context,
	userID string,
	req BulkUpsertRequest,
) (*BulkUpsertResponse, error) {
	if s.cfg.MaxBatchItems > 0 && len(req.Items) > s.cfg.MaxBatchItems {
		return nil, core.ValidationError(
			"bulk request too large",
			fmt.Sprintf("items must not exceed %d", s.cfg.MaxBatchItems),
		)
	}

	if err := s.gate.CheckUsable(ctx, req.LicenseKey); err != nil {
		return nil, err
	}

	resp := &BulkUpsertResponse{
		Results: make([]BulkItemResult, 0, len(req.Items)),
	}

	for _, it := range req.Items {
		result := BulkItemResult{DataType: it.DataType, DataKey: it.DataKey}

		if err := s.validateItem(it.DataType, it.Value); err != nil {
			result.Error = appErrorMessage(err)
			resp.Failed++
			resp.Results = append(resp.Results, result)
			continue
		}

		version, err := s.repo.Upsert(ctx, &Item{
			UserID:   userID,
			DataType: it.DataType,
			DataKey:  it.DataKey,
			Value:    it.Value,
			DeviceID: req.DeviceID,
		})
		if err != nil {
			result.Error = "write failed"
			resp.Failed++
		} else {
			result.Version = version
			resp.Succeeded++
		}

		resp.Results = append(resp.Results, result)
	}

	return resp, nil
}

func (s *Service) List(
	ctx context.Context,
	userID, dataType string,
) ([]Item, error) {
	if dataType != "" && !IsAllowedType(dataType) {
		return nil, core.ValidationError(
			"invalid data type",
			fmt.Sprintf("data_type %q is not recognized", dataType),
		)
	}

	return s.repo.List(ctx, userID, dataType)
}

func (s *Service) Get(
	ctx context.Context,
	userID, dataType, dataKey string,
) (*Item, error) {
	item, err := s.repo.Get(ctx, userID, dataType, dataKey)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.NotFoundError("sync item")
		}
		return nil, err
	}
	return item, nil
}

func (s *Service) Delete(
	ctx context.Context,
	userID, dataType, dataKey string,
) error {
	if err := s.repo.Delete(ctx, userID, dataType, dataKey); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NotFoundError("sync item")
		}
		return err
	}
	return nil
}

func (s *Service) Status(
	ctx context.Context,
	userID string,
) (*StatusResponse, error) {
	counts, err := s.repo.CountByType(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := &StatusResponse{ByType: counts}
	for _, c := range counts {
		resp.TotalItems += c.Count
	}

	return resp, nil
}

func (s *Service) validateItem(dataType, value string) error {
	var violations []string

	if !IsAllowedType(dataType) {
		violations = append(violations,
			fmt.Sprintf("data_type %q is not recognized", dataType))
	}

	if s.cfg.MaxValueBytes > 0 && len(value) > s.cfg.MaxValueBytes {
		violations = append(violations,
			fmt.Sprintf("value must not exceed %d bytes", s.cfg.MaxValueBytes))
	}

	if len(violations) > 0 {
		return core.ValidationError("invalid sync item", violations...)
	}

	return nil
}

func appErrorMessage(err error) string {
	if appErr, ok := core.AsAppError(err); ok {
		if len(appErr.Fields) > 0 {
			return appErr.Fields[0]
		}
		return appErr.Message
	}
	return err.Error()
}
