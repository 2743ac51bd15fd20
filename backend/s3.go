package backend

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"blobgate/awsv4"
	"blobgate/logger"
	"blobgate/promise"
)

// S3Socket разговаривает с S3-совместимым хранилищем напрямую по HTTP,
// подписывая каждый запрос по AWS Signature V4. Объект id живет по пути
// /{bucket}/{id}; id встраивается как есть, URL-безопасность - забота
// вызывающего.
type S3Socket struct {
	cfg     Config
	metrics *Metrics
	scheme  string
	host    string

	mu     sync.Mutex
	client *http.Client
	ready  *promise.Promise[bool]
}

// NewS3Socket создает сокет над S3-совместимым хостом. Схема берется из
// host, по умолчанию http.
func NewS3Socket(cfg Config) *S3Socket {
	scheme, host := "http", cfg.Host
	if i := strings.Index(host, "://"); i >= 0 {
		scheme, host = host[:i], host[i+3:]
	}
	return &S3Socket{
		cfg:     cfg,
		metrics: NewMetrics(),
		scheme:  scheme,
		host:    host,
		ready:   promise.New[bool](),
	}
}

// Init настраивает HTTP клиент с таймаутом транспорта
func (s *S3Socket) Init() *promise.Promise[bool] {
	s.mu.Lock()
	s.ready = promise.New[bool]()
	ready := s.ready
	s.client = &http.Client{Timeout: s.cfg.opTimeout()}
	s.mu.Unlock()

	logger.Info("S3 socket '%s' initialized for %s://%s (bucket %s)",
		s.cfg.Alias, s.scheme, s.host, s.cfg.Bucket)
	ready.Resolve(true)
	return ready
}

// IsReady возвращает текущую ячейку готовности
func (s *S3Socket) IsReady() *promise.Promise[bool] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// httpClient возвращает клиент либо ошибку закрытого сокета
func (s *S3Socket) httpClient() (*http.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, ErrSocketClosed
	}
	return s.client, nil
}

// do выполняет один подписанный запрос и возвращает ответ с прочитанным
// телом. Сетевые сбои заворачиваются в NetworkError с адресом хоста.
func (s *S3Socket) do(method, pathname, query string, payload []byte, payloadHash string) (*http.Response, []byte, error) {
	client, err := s.httpClient()
	if err != nil {
		return nil, nil, err
	}

	headers := awsv4.Sign(s.host, pathname, s.cfg.AccessKey, s.cfg.SecretKey, awsv4.Options{
		Method:      method,
		Query:       query,
		PayloadHash: payloadHash,
	})

	url := s.scheme + "://" + s.host + pathname
	if query != "" {
		url += "?" + query
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, nil, fmt.Errorf("build %s request: %w", method, err)
	}
	for key, value := range headers {
		if strings.EqualFold(key, "host") {
			continue
		}
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, &NetworkError{Host: s.host, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &NetworkError{Host: s.host, Err: err}
	}
	return resp, raw, nil
}

// objectPath строит путь объекта в бакете
func (s *S3Socket) objectPath(id string) string {
	return "/" + s.cfg.Bucket + "/" + id
}

// IsOnline выполняет HEAD бакета и измеряет его длительность
func (s *S3Socket) IsOnline() *promise.Promise[Liveness] {
	return promise.Run(func() (Liveness, error) {
		start := time.Now()
		resp, _, err := s.do(http.MethodHead, "/"+s.cfg.Bucket, "", nil, "")
		if err != nil || resp.StatusCode >= 500 {
			s.metrics.SocketOnline.WithLabelValues(s.cfg.Alias).Set(0)
			return Liveness{}, nil
		}
		s.metrics.SocketOnline.WithLabelValues(s.cfg.Alias).Set(1)
		return Liveness{Online: true, LatencyMs: time.Since(start).Milliseconds()}, nil
	})
}

// GetObjectMetadata запрашивает атрибуты объекта и декодирует размер из
// XML тела, а момент создания - из заголовка Last-Modified (секунды,
// умноженные на 1000)
func (s *S3Socket) GetObjectMetadata(id string) *promise.Promise[ObjectMetadata] {
	return runOp(s.metrics, s.cfg.Alias, "get_object_metadata", s.cfg.opTimeout(), func() (ObjectMetadata, error) {
		resp, raw, err := s.do(http.MethodGet, s.objectPath(id), "attributes=", nil, "")
		if err != nil {
			return ObjectMetadata{}, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return ObjectMetadata{}, fmt.Errorf("%w: %s (status %d)", ErrObjectNotFound, id, resp.StatusCode)
		}

		size, err := parseObjectSize(raw)
		if err != nil {
			return ObjectMetadata{}, fmt.Errorf("parse attributes for %s: %w", id, err)
		}

		var createdAt int64
		if lm := resp.Header.Get("Last-Modified"); lm != "" {
			if ts, err := http.ParseTime(lm); err == nil {
				createdAt = ts.Unix() * 1000
			}
		}
		return ObjectMetadata{ID: id, Size: size, CreatedAt: createdAt}, nil
	})
}

// ApproveObjectMetadata выполняет HEAD и одобряет запись, только если
// объект отсутствует
func (s *S3Socket) ApproveObjectMetadata(id string, size int64) *promise.Promise[bool] {
	return runOp(s.metrics, s.cfg.Alias, "approve_object_metadata", s.cfg.opTimeout(), func() (bool, error) {
		resp, _, err := s.do(http.MethodHead, s.objectPath(id), "", nil, "")
		if err != nil {
			return false, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return false, fmt.Errorf("%w: %s", ErrObjectExists, id)
		}
		// 404/403 и прочие не-2xx на HEAD означают "отсутствует"
		return true, nil
	})
}

// GetObject читает тело объекта
func (s *S3Socket) GetObject(id string) *promise.Promise[[]byte] {
	return runOp(s.metrics, s.cfg.Alias, "get_object", s.cfg.opTimeout(), func() ([]byte, error) {
		resp, raw, err := s.do(http.MethodGet, s.objectPath(id), "", nil, "")
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: %s (status %d)", ErrObjectNotFound, id, resp.StatusCode)
		}
		return raw, nil
	})
}

// SetObject загружает объект PUT-ом с неподписанным телом, затем
// перечитывает метаданные у хранилища
func (s *S3Socket) SetObject(id string, data []byte) *promise.Promise[ObjectMetadata] {
	put := runOp(s.metrics, s.cfg.Alias, "set_object", s.cfg.opTimeout(), func() (bool, error) {
		resp, raw, err := s.do(http.MethodPut, s.objectPath(id), "", data, "UNSIGNED-PAYLOAD")
		if err != nil {
			return false, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return false, fmt.Errorf("put object %s: status %d: %s", id, resp.StatusCode, truncated(raw))
		}
		return true, nil
	})
	return promise.ThenP(put, func(bool) *promise.Promise[ObjectMetadata] {
		return s.GetObjectMetadata(id)
	})
}

// DelObject выполняет DELETE; 204 считается успехом
func (s *S3Socket) DelObject(id string) *promise.Promise[bool] {
	return runOp(s.metrics, s.cfg.Alias, "del_object", s.cfg.opTimeout(), func() (bool, error) {
		resp, raw, err := s.do(http.MethodDelete, s.objectPath(id), "", nil, "")
		if err != nil {
			return false, err
		}
		if resp.StatusCode == http.StatusNoContent ||
			(resp.StatusCode >= 200 && resp.StatusCode < 300) {
			return true, nil
		}
		return false, fmt.Errorf("delete object %s: status %d: %s", id, resp.StatusCode, truncated(raw))
	})
}

// Backup - no-op: удаленное хранилище само отвечает за долговечность
func (s *S3Socket) Backup() *promise.Promise[bool] {
	return promise.Resolved(true)
}

// Close освобождает клиент и отклоняет готовность
func (s *S3Socket) Close() *promise.Promise[bool] {
	s.mu.Lock()
	s.client = nil
	s.ready = promise.Rejected[bool](ErrSocketClosed)
	s.mu.Unlock()
	logger.Debug("S3 socket '%s' closed", s.cfg.Alias)
	return promise.Resolved(true)
}

// parseObjectSize извлекает <ObjectSize> из XML ответа атрибутов,
// не завися от имени корневого элемента
func parseObjectSize(raw []byte) (int64, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, fmt.Errorf("no ObjectSize element in response")
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "ObjectSize" {
			var size int64
			if err := dec.DecodeElement(&size, &se); err != nil {
				return 0, err
			}
			return size, nil
		}
	}
}

// truncated обрезает тело ответа для диагностики
func truncated(raw []byte) string {
	const max = 200
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
