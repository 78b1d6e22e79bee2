// Package webservice — клиент пакетного вебсервиса редактора курса.
package webservice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"courseeditor/internal/logger"
	"courseeditor/internal/models"
	"courseeditor/internal/reqctx"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const servicePath = "/api/service"

// ErrExternalService — вызов не дошёл, завершился ошибкой или вернул мусор.
var ErrExternalService = errors.New("ошибка внешнего сервиса")

// ServiceError — ошибка, которую вернул сам вебсервис в конверте ответа.
type ServiceError struct {
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("вебсервис: %s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return ErrExternalService }

// TransportError — запрос не удалось выполнить (сеть, таймаут, отмена контекста).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "вебсервис недоступен: " + e.Err.Error() }

func (e *TransportError) Unwrap() []error { return []error{ErrExternalService, e.Err} }

// Caller выполняет один вызов метода и возвращает его полезную нагрузку (JSON).
type Caller interface {
	Call(ctx context.Context, method string, args any) ([]byte, error)
}

type Client struct {
	http *resty.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token != "" {
		c.SetAuthToken(token)
	}
	return &Client{http: c}
}

// Call отправляет пакет из одного вызова. Повторов нет.
func (c *Client) Call(ctx context.Context, method string, args any) ([]byte, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, errors.Wrap(err, "кодирование аргументов")
	}
	batch := []models.ServiceCall{{Index: 0, MethodName: method, Args: raw}}

	req := c.http.R().SetContext(ctx).SetBody(batch)
	if rid, ok := reqctx.GetRequestID(ctx); ok {
		req.SetHeader("X-Request-ID", rid)
	}

	start := time.Now()
	resp, err := req.Post(servicePath)
	log := logger.WithCtx(ctx).With(zap.String("method", method), zap.Duration("duration", time.Since(start)))
	if err != nil {
		log.Warn("webservice: запрос не выполнен", zap.Error(err))
		return nil, errors.WithMessage(&TransportError{Err: err}, method)
	}
	if !resp.IsSuccess() {
		log.Warn("webservice: неуспешный статус", zap.Int("status", resp.StatusCode()))
		return nil, errors.Wrapf(ErrExternalService, "%s: статус %d", method, resp.StatusCode())
	}

	var out []models.ServiceResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, errors.Wrapf(ErrExternalService, "%s: некорректный ответ: %v", method, err)
	}
	if len(out) != 1 {
		return nil, errors.Wrapf(ErrExternalService, "%s: ожидался один ответ, получено %d", method, len(out))
	}
	if out[0].Error {
		se := &ServiceError{Code: "unknown"}
		if ex := out[0].Exception; ex != nil {
			se.Code, se.Message = ex.ErrorCode, ex.Message
		}
		log.Info("webservice: вызов завершился ошибкой", zap.String("errorcode", se.Code))
		return nil, errors.WithMessage(se, method)
	}

	log.Debug("webservice: вызов выполнен")
	return []byte(out[0].Data), nil
}
