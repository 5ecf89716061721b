package http_cosigner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
	"github.com/vulpemventures/multisig-relay/internal/core/ports"
)

const (
	cosignPath    = "/"
	secondaryPath = "/secondary-account"

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	maxResponseSize   = 1 << 20
)

var (
	ErrMissingURL = fmt.Errorf("missing cosigner url")
	ErrInvalidURL = fmt.Errorf("invalid cosigner url")
)

// ServiceArgs configures the http client of a cosigner. Timeout bounds a
// whole call, retries included.
type ServiceArgs struct {
	URL        string
	Timeout    time.Duration
	MaxRetries uint64
	Client     *http.Client
}

func (a ServiceArgs) validate() error {
	if a.URL == "" {
		return ErrMissingURL
	}
	u, err := url.Parse(a.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w %s", ErrInvalidURL, a.URL)
	}
	return nil
}

type service struct {
	baseURL    string
	client     *http.Client
	timeout    time.Duration
	maxRetries uint64

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

// NewService returns a ports.Cosigner talking to a remote relay daemon over
// http.
func NewService(args ServiceArgs) (ports.Cosigner, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	timeout := args.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := args.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	client := args.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("cosigner: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("cosigner: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	return &service{
		strings.TrimSuffix(args.URL, "/"), client, timeout, maxRetries,
		logFn, warnFn,
	}, nil
}

func (s *service) ProvisionSecondary(
	ctx context.Context, primaryAddress string,
) (string, error) {
	resp := secondaryAccountResponse{}
	if err := s.call(
		ctx, secondaryPath, secondaryAccountRequest{primaryAddress}, &resp,
	); err != nil {
		return "", err
	}
	if resp.SecondaryAddress == "" {
		return "", fmt.Errorf("%w: empty secondary address", domain.ErrTransport)
	}
	return resp.SecondaryAddress, nil
}

func (s *service) CosignTx(
	ctx context.Context, req domain.CosignRequest,
) (*domain.TxResult, error) {
	if req.ID == "" {
		return nil, domain.ErrMissingRequestID
	}

	res := &domain.TxResult{}
	if err := s.call(ctx, cosignPath, req, res); err != nil {
		return nil, err
	}
	s.log("request %s submitted with tx %s", req.ID, res.Hash)
	return res, nil
}

// call posts body to path and decodes the response in out. Transport
// failures and server errors are retried with exponential backoff, always
// sending the same body, until the configured timeout expires.
func (s *service) call(
	ctx context.Context, path string, body, out interface{},
) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = s.timeout
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, s.maxRetries), ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := s.post(ctx, path, payload, out)
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			s.warn(err, "attempt %d to %s failed", attempt, path)
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, policy); err != nil {
		if isRetryable(err) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf(
				"%w: %s after %d attempts", domain.ErrTransport, err, attempt,
			)
		}
		return err
	}
	return nil
}

func (s *service) post(
	ctx context.Context, path string, payload []byte, out interface{},
) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &transportError{err}
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &transportError{err}
	}

	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(buf, out); err != nil {
			return fmt.Errorf("%w: invalid response: %s", domain.ErrTransport, err)
		}
		return nil
	}
	return parseErrorResponse(resp.StatusCode, buf)
}

func parseErrorResponse(status int, buf []byte) error {
	errResp := errorResponse{}
	if err := json.Unmarshal(buf, &errResp); err != nil || errResp.Error == "" {
		errResp.Error = strings.TrimSpace(string(buf))
	}
	if errResp.Error == "" {
		errResp.Error = http.StatusText(status)
	}

	switch {
	case status >= http.StatusInternalServerError:
		return &transportError{
			fmt.Errorf("status %d: %s", status, errResp.Error),
		}
	case status == http.StatusUnprocessableEntity:
		if errResp.ResultCodes != nil {
			return errResp.ResultCodes
		}
		return &domain.SubmissionError{Reason: errResp.Error}
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrUserNotFound, errResp.Error)
	default:
		return fmt.Errorf("%w: %s", domain.ErrCosignRejected, errResp.Error)
	}
}

type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return e.err.Error()
}

func (e *transportError) Unwrap() error {
	return e.err
}

func isRetryable(err error) bool {
	var tErr *transportError
	return errors.As(err, &tErr)
}

type secondaryAccountRequest struct {
	PrimaryAddress string `json:"primary_address"`
}

type secondaryAccountResponse struct {
	SecondaryAddress string `json:"secondary_address"`
}

type errorResponse struct {
	Error       string                  `json:"error"`
	ResultCodes *domain.SubmissionError `json:"result_codes,omitempty"`
}
