package postgresdb

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

const (
	//uniqueViolation is a postgres error code for unique constraint violation
	uniqueViolation = "23505"

	insertCosign = `INSERT INTO cosign_requests
		(request_id, envelope, source_account, status, result, error, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::jsonb, NULLIF($6, '')::jsonb, $7)`
	selectCosign = `SELECT request_id, envelope, source_account, status,
		COALESCE(result::text, ''), COALESCE(error::text, ''), created_at
		FROM cosign_requests WHERE request_id = $1`
)

type cosignRepositoryPg struct {
	pgxPool *pgxpool.Pool
}

func NewCosignRepositoryPgImpl(pgxPool *pgxpool.Pool) domain.CosignRepository {
	return newCosignRepositoryPg(pgxPool)
}

func newCosignRepositoryPg(pgxPool *pgxpool.Pool) *cosignRepositoryPg {
	return &cosignRepositoryPg{pgxPool}
}

func (c *cosignRepositoryPg) GetCosign(
	ctx context.Context, requestID string,
) (*domain.Cosign, error) {
	var (
		cosign         domain.Cosign
		status         int16
		result, errStr string
	)
	if err := c.pgxPool.QueryRow(ctx, selectCosign, requestID).Scan(
		&cosign.RequestID, &cosign.Envelope, &cosign.SourceAccount, &status,
		&result, &errStr, &cosign.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCosignNotFound
		}
		return nil, err
	}

	cosign.Status = domain.CosignStatus(status)
	if result != "" {
		cosign.Result = &domain.TxResult{}
		if err := json.Unmarshal([]byte(result), cosign.Result); err != nil {
			return nil, err
		}
	}
	if errStr != "" {
		cosign.Error = &domain.SubmissionError{}
		if err := json.Unmarshal([]byte(errStr), cosign.Error); err != nil {
			return nil, err
		}
	}
	return &cosign, nil
}

func (c *cosignRepositoryPg) AddCosign(
	ctx context.Context, cosign *domain.Cosign,
) error {
	if len(cosign.RequestID) == 0 {
		return domain.ErrMissingRequestID
	}

	result, err := marshalNullable(cosign.Result)
	if err != nil {
		return err
	}
	errStr, err := marshalNullable(cosign.Error)
	if err != nil {
		return err
	}

	if _, err := c.pgxPool.Exec(
		ctx, insertCosign, cosign.RequestID, cosign.Envelope,
		cosign.SourceAccount, int16(cosign.Status), result, errStr,
		cosign.CreatedAt,
	); err != nil {
		if pqErr, ok := err.(*pgconn.PgError); pqErr != nil && ok && pqErr.Code == uniqueViolation {
			return domain.ErrCosignAlreadyExists
		}
		return err
	}
	return nil
}

func marshalNullable(v interface{}) (string, error) {
	switch val := v.(type) {
	case *domain.TxResult:
		if val == nil {
			return "", nil
		}
	case *domain.SubmissionError:
		if val == nil {
			return "", nil
		}
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
