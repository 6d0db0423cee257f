// Package common contains shared constants and sentinel errors used across
// the account service components.
package common

// AccessTokenHeaderName is the legacy request header that may carry the
// access token instead of "Authorization: Bearer".
const AccessTokenHeaderName = "auth_token"

// RefreshTokenCookieName names the cookie that carries the refresh token.
const RefreshTokenCookieName = "refresh_token"
