package awsv4

import (
	"sort"
	"strings"
	"time"
)

const (
	algorithm = "AWS4-HMAC-SHA256"
	// unsignedPayload подставляется в x-amz-content-sha256, когда тело
	// запроса не хэшируется
	unsignedPayload = "UNSIGNED-PAYLOAD"

	defaultService = "s3"
	defaultRegion  = "us-east-1"

	amzDateFormat = "20060102T150405Z"
)

// Options содержит распознаваемые опции подписания одного запроса
type Options struct {
	// Method - HTTP метод; приводится к верхнему регистру
	Method string

	// Query - каноническая строка запроса, уже отсортированная
	// и URL-кодированная
	Query string

	// Headers - дополнительные заголовки пользователя; накладываются
	// поверх канонической тройки host/x-amz-date/x-amz-content-sha256
	Headers map[string]string

	// Payload - тело запроса для хэширования. nil означает
	// неподписанное тело (UNSIGNED-PAYLOAD), если не задан PayloadHash.
	Payload []byte

	// PayloadHash - готовый hex-дайджест тела; используется как есть
	// и имеет приоритет над Payload
	PayloadHash string

	// Date - метка времени в формате YYYYMMDDTHHMMSSZ;
	// по умолчанию текущее время UTC
	Date string

	// Service - имя сервиса AWS, по умолчанию "s3"
	Service string

	// Region - регион AWS, по умолчанию "us-east-1"
	Region string
}

// Sign строит карту заголовков для запроса (host, pathname) с
// аутентификацией по AWS Signature V4. Возвращаемая карта содержит
// заголовки пользователя, каноническую тройку и Authorization.
// Ключи нормализованы к нижнему регистру, кроме Authorization.
func Sign(host, pathname, accessKey, secretKey string, opts Options) map[string]string {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = "GET"
	}

	service := opts.Service
	if service == "" {
		service = defaultService
	}
	region := opts.Region
	if region == "" {
		region = defaultRegion
	}

	amzDate := opts.Date
	if amzDate == "" {
		amzDate = time.Now().UTC().Format(amzDateFormat)
	}
	shortDate := amzDate[:8]

	payloadHash := opts.PayloadHash
	if payloadHash == "" {
		if opts.Payload != nil {
			payloadHash = HexString(Sha256(opts.Payload))
		} else {
			payloadHash = unsignedPayload
		}
	}

	// Заголовки пользователя поверх канонической тройки
	headers := map[string]string{
		"host":                 strings.TrimSpace(host),
		"x-amz-date":           amzDate,
		"x-amz-content-sha256": payloadHash,
	}
	for key, value := range opts.Headers {
		headers[strings.ToLower(key)] = strings.TrimSpace(value)
	}

	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var canonicalHeaders strings.Builder
	for _, key := range keys {
		canonicalHeaders.WriteString(key)
		canonicalHeaders.WriteString(":")
		canonicalHeaders.WriteString(headers[key])
		canonicalHeaders.WriteString("\n")
	}
	signedHeaders := strings.Join(keys, ";")

	canonicalRequest := strings.Join([]string{
		method,
		pathname,
		opts.Query,
		canonicalHeaders.String(),
		signedHeaders,
		payloadHash,
	}, "\n")

	scope := strings.Join([]string{shortDate, region, service, "aws4_request"}, "/")

	stringToSign := strings.Join([]string{
		algorithm,
		amzDate,
		scope,
		HexString(Sha256([]byte(canonicalRequest))),
	}, "\n")

	// Цепочка всегда получает четыре сообщения, ошибка недостижима
	signingKey, _ := HmacChain(
		[]byte("AWS4"+secretKey),
		[]byte(shortDate),
		[]byte(region),
		[]byte(service),
		[]byte("aws4_request"),
	)
	signature := HexString(HmacSHA256(signingKey, []byte(stringToSign)))

	authorization := algorithm +
		" Credential=" + accessKey + "/" + scope +
		", SignedHeaders=" + signedHeaders +
		", Signature=" + signature

	out := make(map[string]string, len(headers)+1)
	for key, value := range headers {
		out[key] = value
	}
	out["Authorization"] = authorization
	return out
}
