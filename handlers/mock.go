package handlers

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"blobgate/apigw"
	"blobgate/logger"
)

// encodeData кодирует тело блоба для JSON ответа
func encodeData(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// MockHandler - тестовая реализация RequestHandler для шлюза
type MockHandler struct{}

// NewMockHandler создает новый экземпляр тестового обработчика
func NewMockHandler() *MockHandler {
	return &MockHandler{}
}

// Handle реализует интерфейс RequestHandler
func (h *MockHandler) Handle(req *apigw.BlobRequest) *apigw.BlobResponse {
	logger.Debug("MockHandler: handling request - op=%s, id=%q", req.Operation.String(), req.ID)

	switch req.Operation {
	case apigw.WriteBlob:
		return &apigw.BlobResponse{
			StatusCode: http.StatusCreated,
			Body:       map[string]string{"message": "mock blob stored"},
		}
	case apigw.ReadBlob:
		content := fmt.Sprintf("Mock content for blob %s", req.ID)
		return &apigw.BlobResponse{
			StatusCode: http.StatusOK,
			Body: readBody{
				ID:        req.ID,
				Size:      int64(len(content)),
				CreatedAt: 1700000000000,
				Data:      encodeData([]byte(content)),
			},
		}
	default:
		return &apigw.BlobResponse{
			StatusCode: http.StatusNotImplemented,
			Error:      fmt.Errorf("operation %s not implemented", req.Operation.String()),
		}
	}
}
