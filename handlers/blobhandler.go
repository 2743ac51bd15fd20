// Package handlers связывает HTTP шлюз с диспетчером блобов.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"blobgate/apigw"
	"blobgate/backend"
	"blobgate/frontend"
	"blobgate/logger"
	"blobgate/promise"
)

// BlobStore - контракт диспетчера, который нужен обработчику.
// Его реализует frontend.Stateful.
type BlobStore interface {
	WriteObject(id, data, bearer string) *promise.Promise[int]
	ReadObject(id, bearer string) *promise.Promise[*frontend.StoredObject]
}

// BlobHandler реализует интерфейс RequestHandler поверх диспетчера
type BlobHandler struct {
	store BlobStore
}

// NewBlobHandler создает обработчик над диспетчером
func NewBlobHandler(store BlobStore) *BlobHandler {
	return &BlobHandler{store: store}
}

// writeBody - JSON тело запроса записи
type writeBody struct {
	ID   string  `json:"id"`
	Data *string `json:"data"`
}

// readBody - JSON тело ответа чтения
type readBody struct {
	ID        string `json:"id"`
	Size      int64  `json:"size"`
	CreatedAt int64  `json:"created_at"`
	Data      string `json:"data"`
}

// Handle реализует интерфейс RequestHandler
func (h *BlobHandler) Handle(req *apigw.BlobRequest) *apigw.BlobResponse {
	switch req.Operation {
	case apigw.WriteBlob:
		return h.handleWrite(req)
	case apigw.ReadBlob:
		return h.handleRead(req)
	default:
		return &apigw.BlobResponse{
			StatusCode: http.StatusNotImplemented,
			Error:      fmt.Errorf("operation %s not implemented", req.Operation.String()),
		}
	}
}

// handleWrite разбирает тело записи и транслирует исход диспетчера
// в HTTP коды: 201 при успехе, 415 при неверном Content-Type, 422 при
// испорченном теле или занятом id, 503 когда ни один бэкенд не доступен
func (h *BlobHandler) handleWrite(req *apigw.BlobRequest) *apigw.BlobResponse {
	mediaType, _, err := mime.ParseMediaType(req.ContentType)
	if err != nil || mediaType != "application/json" {
		return &apigw.BlobResponse{
			StatusCode: http.StatusUnsupportedMediaType,
			Error:      fmt.Errorf("expected application/json content type"),
		}
	}

	var body writeBody
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return &apigw.BlobResponse{
			StatusCode: http.StatusUnprocessableEntity,
			Error:      fmt.Errorf("malformed request body: %v", err),
		}
	}
	if body.ID == "" || body.Data == nil {
		return &apigw.BlobResponse{
			StatusCode: http.StatusUnprocessableEntity,
			Error:      fmt.Errorf("id and data fields are required"),
		}
	}

	// Тело остается в base64: диспетчер декодирует его лениво
	if _, err := h.store.WriteObject(body.ID, *body.Data, req.Bearer).Wait(); err != nil {
		return h.writeErrorResponse(body.ID, err)
	}

	return &apigw.BlobResponse{
		StatusCode: http.StatusCreated,
		Body:       map[string]string{"message": fmt.Sprintf("blob %q stored", body.ID)},
	}
}

// writeErrorResponse сопоставляет ошибки диспетчера с HTTP кодами
func (h *BlobHandler) writeErrorResponse(id string, err error) *apigw.BlobResponse {
	switch {
	case errors.Is(err, backend.ErrObjectExists):
		return &apigw.BlobResponse{
			StatusCode: http.StatusUnprocessableEntity,
			Error:      fmt.Errorf("blob %q already exists", id),
		}
	case errors.Is(err, frontend.ErrBadPayload):
		return &apigw.BlobResponse{
			StatusCode: http.StatusUnprocessableEntity,
			Error:      fmt.Errorf("data is not valid base64"),
		}
	case errors.Is(err, frontend.ErrNoBackendOnline):
		return &apigw.BlobResponse{
			StatusCode: http.StatusServiceUnavailable,
			Error:      fmt.Errorf("no storage backend available"),
		}
	default:
		logger.Error("BlobHandler: write of %q failed: %v", id, err)
		return &apigw.BlobResponse{
			StatusCode: http.StatusInternalServerError,
			Error:      fmt.Errorf("internal error"),
		}
	}
}

// handleRead читает объект через диспетчер: 200 с телом в base64,
// 401 при чужом bearer, 404 при отсутствии
func (h *BlobHandler) handleRead(req *apigw.BlobRequest) *apigw.BlobResponse {
	obj, err := h.store.ReadObject(req.ID, req.Bearer).Wait()
	if err != nil {
		if errors.Is(err, frontend.ErrUnauthorized) {
			return &apigw.BlobResponse{
				StatusCode: http.StatusUnauthorized,
				Error:      fmt.Errorf("bearer token does not match"),
			}
		}
		logger.Error("BlobHandler: read of %q failed: %v", req.ID, err)
		return &apigw.BlobResponse{
			StatusCode: http.StatusInternalServerError,
			Error:      fmt.Errorf("internal error"),
		}
	}
	if obj == nil {
		return &apigw.BlobResponse{
			StatusCode: http.StatusNotFound,
			Error:      fmt.Errorf("blob %q not found", req.ID),
		}
	}

	return &apigw.BlobResponse{
		StatusCode: http.StatusOK,
		Body: readBody{
			ID:        obj.Meta.ID,
			Size:      obj.Meta.Size,
			CreatedAt: obj.Meta.CreatedAt,
			Data:      encodeData(obj.Data),
		},
	}
}
