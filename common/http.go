package common

import (
	"context"
	"net/http"
)

type httpClientType struct{}
type userAgentType struct{}

var (
	HttpClientKey httpClientType
	UserAgentKey  userAgentType
)

// HttpClient returns the client carried by ctx, or http.DefaultClient.
func HttpClient(ctx context.Context) *http.Client {
	if c, _ := ctx.Value(HttpClientKey).(*http.Client); c != nil {
		return c
	}
	return http.DefaultClient
}

// UserAgent returns the process wide user agent carried by ctx.
func UserAgent(ctx context.Context) string {
	ua, _ := ctx.Value(UserAgentKey).(string)
	return ua
}

func WithHTTP(ctx context.Context, client *http.Client, userAgent string) context.Context {
	if client != nil {
		ctx = context.WithValue(ctx, HttpClientKey, client)
	}
	return context.WithValue(ctx, UserAgentKey, userAgent)
}
