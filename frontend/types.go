// Package frontend реализует диспетчер блобов: без состояния
// (случайная запись, параллельное чтение по всем сокетам) и поверх него -
// с состоянием (авторитетный индекс id -> (бэкенд, bearer) и авторизация
// по bearer-токену).
package frontend

import (
	"errors"

	"blobgate/backend"
)

// StoredObject - результат чтения: метаданные вместе с телом блоба
type StoredObject struct {
	Meta backend.ObjectMetadata
	Data []byte
}

// Ошибки уровня диспетчера
var (
	// ErrNoBackendOnline - при записи ни один бэкенд не оказался online
	ErrNoBackendOnline = errors.New("frontend: no backend online")

	// ErrBadPayload - тело записи не декодируется из base64
	ErrBadPayload = errors.New("frontend: malformed base64 payload")

	// ErrUnauthorized - bearer вызывающего не совпадает с сохраненным
	ErrUnauthorized = errors.New("frontend: bearer token mismatch")

	// ErrFrontendClosed - диспетчер закрыт
	ErrFrontendClosed = errors.New("frontend: closed")
)
