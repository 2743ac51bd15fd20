package apigw

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"blobgate/logger"
)

// Gateway представляет модуль API Gateway
type Gateway struct {
	config         Config
	handler        RequestHandler
	parser         *RequestParser
	responseWriter *ResponseWriter
	server         *http.Server
	metrics        *Metrics
}

// New создает новый экземпляр API Gateway
func New(config Config, handler RequestHandler) *Gateway {
	return &Gateway{
		config:         config,
		handler:        handler,
		parser:         NewRequestParser(),
		responseWriter: NewResponseWriter(),
		metrics:        NewMetrics(),
	}
}

// ServeHTTP реализует интерфейс http.Handler
func (gw *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.Info("Incoming request: %s %s", r.Method, r.URL.Path)

	req, err := gw.parser.Parse(r)
	if err != nil {
		logger.Warn("Failed to parse request: %v", err)
		resp := &BlobResponse{
			StatusCode: http.StatusBadRequest,
			Error:      fmt.Errorf("invalid request: %v", err),
		}
		gw.writeAndRecord(w, r, resp, start)
		return
	}

	logger.Debug("Parsed request: op=%s, id=%q, bearer set=%t",
		req.Operation.String(), req.ID, req.Bearer != "")

	resp := gw.handler.Handle(req)
	gw.writeAndRecord(w, r, resp, start)
}

// writeAndRecord отправляет ответ и обновляет метрики запроса
func (gw *Gateway) writeAndRecord(w http.ResponseWriter, r *http.Request, resp *BlobResponse, start time.Time) {
	if err := gw.responseWriter.WriteResponse(w, resp); err != nil {
		logger.Error("Failed to write response: %v", err)
	}

	latency := time.Since(start)
	logger.Info("Response sent: %d, %.3f ms", resp.StatusCode, float64(latency.Microseconds())/1000.0)

	gw.metrics.RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(resp.StatusCode)).Inc()
	gw.metrics.RequestLatency.WithLabelValues(r.Method).Observe(latency.Seconds())
}

// Start запускает сервер
func (gw *Gateway) Start() error {
	gw.server = &http.Server{
		Addr:         gw.config.ListenAddress,
		Handler:      gw,
		ReadTimeout:  gw.config.ReadTimeout,
		WriteTimeout: gw.config.WriteTimeout,
	}

	logger.Info("Starting API Gateway on %s", gw.config.ListenAddress)

	if gw.config.TLSCertFile != "" && gw.config.TLSKeyFile != "" {
		logger.Info("Starting HTTPS server with TLS")
		return gw.server.ListenAndServeTLS(gw.config.TLSCertFile, gw.config.TLSKeyFile)
	}

	return gw.server.ListenAndServe()
}

// Stop останавливает сервер
func (gw *Gateway) Stop(ctx context.Context) error {
	if gw.server == nil {
		return nil
	}

	logger.Info("Stopping API Gateway...")
	return gw.server.Shutdown(ctx)
}
