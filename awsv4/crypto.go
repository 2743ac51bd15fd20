// Package awsv4 реализует подписание HTTP запросов по схеме
// AWS Signature Version 4 и криптографические примитивы для нее.
package awsv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrChainTooShort возвращается, когда цепочке HMAC не передано
// ни одного сообщения помимо затравки. Это ошибка программиста.
var ErrChainTooShort = errors.New("awsv4: hmac chain requires at least one message")

// Sha256 возвращает SHA-256 дайджест данных (32 байта)
func Sha256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// HmacSHA256 возвращает HMAC-SHA256 сообщения msg под ключом key (32 байта)
func HmacSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// HmacChain вычисляет рекурсивную цепочку HMAC:
// H1 = HMAC(seed, m1), Hk = HMAC(Hk-1, mk). Требуется хотя бы одно
// сообщение.
func HmacChain(seed []byte, msgs ...[]byte) ([]byte, error) {
	if len(msgs) == 0 {
		return nil, ErrChainTooShort
	}
	key := seed
	for _, msg := range msgs {
		key = HmacSHA256(key, msg)
	}
	return key, nil
}

// HexString возвращает шестнадцатеричное представление данных
// в нижнем регистре без разделителей
func HexString(data []byte) string {
	return hex.EncodeToString(data)
}
