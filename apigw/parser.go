package apigw

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"blobgate/logger"
)

const blobsPrefix = "/v1/blobs"

// maxBodyBytes ограничивает размер принимаемого тела запроса
const maxBodyBytes = 64 << 20

// RequestParser отвечает за парсинг HTTP запросов в BlobRequest
type RequestParser struct{}

// NewRequestParser создает новый экземпляр парсера
func NewRequestParser() *RequestParser {
	return &RequestParser{}
}

// Parse анализирует HTTP запрос и создает BlobRequest
func (p *RequestParser) Parse(r *http.Request) (*BlobRequest, error) {
	logger.Debug("Parsing HTTP request: %s %s", r.Method, r.URL.Path)

	req := &BlobRequest{
		Bearer:      parseBearer(r.Header.Get("Authorization")),
		ContentType: r.Header.Get("Content-Type"),
		Context:     r.Context(),
	}

	if !strings.HasPrefix(r.URL.Path, blobsPrefix) {
		req.Operation = UnsupportedOperation
		return nil, fmt.Errorf("unknown path: %s", r.URL.Path)
	}
	rest := strings.TrimPrefix(r.URL.Path, blobsPrefix)

	switch r.Method {
	case http.MethodPost:
		if rest != "" && rest != "/" {
			return nil, fmt.Errorf("unsupported POST path: %s", r.URL.Path)
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		req.Operation = WriteBlob
		req.Body = body
		return req, nil

	case http.MethodGet:
		if !strings.HasPrefix(rest, "/") {
			return nil, fmt.Errorf("missing blob id in path")
		}
		id, err := parseBlobID(rest)
		if err != nil {
			return nil, err
		}
		req.Operation = ReadBlob
		req.ID = id
		return req, nil
	}

	req.Operation = UnsupportedOperation
	return nil, fmt.Errorf("unsupported HTTP method: %s", r.Method)
}

// parseBlobID извлекает идентификатор объекта из хвоста пути
func parseBlobID(rest string) (string, error) {
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return "", fmt.Errorf("missing blob id in path")
	}
	id, err := url.PathUnescape(rest)
	if err != nil {
		return "", fmt.Errorf("malformed blob id: %w", err)
	}
	return id, nil
}

// parseBearer извлекает токен из заголовка Authorization: подстрока
// после ведущего "Bearer" с обрезанными пробелами. Все, что не
// начинается с "Bearer", трактуется как отсутствие токена.
func parseBearer(header string) string {
	if !strings.HasPrefix(header, "Bearer") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
}
