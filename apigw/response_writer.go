package apigw

import (
	"encoding/json"
	"net/http"

	"blobgate/logger"
)

// ResponseWriter отвечает за формирование HTTP ответов из BlobResponse
type ResponseWriter struct{}

// NewResponseWriter создает новый экземпляр writer'а ответов
func NewResponseWriter() *ResponseWriter {
	return &ResponseWriter{}
}

// errorBody - стандартное JSON тело ответа об ошибке
type errorBody struct {
	Error string `json:"error"`
}

// WriteResponse записывает BlobResponse в http.ResponseWriter
func (rw *ResponseWriter) WriteResponse(w http.ResponseWriter, resp *BlobResponse) error {
	w.Header().Set("Content-Type", "application/json")

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	var body any
	switch {
	case resp.Error != nil:
		body = errorBody{Error: resp.Error.Error()}
	case resp.Body != nil:
		body = resp.Body
	}

	raw, err := json.Marshal(body)
	if err != nil {
		logger.Error("Failed to marshal response body: %v", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return err
	}

	w.WriteHeader(status)
	if body == nil {
		return nil
	}
	_, err = w.Write(raw)
	return err
}
