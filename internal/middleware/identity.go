package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// ContextUserID is the echo context key holding the authenticated user id
// as a uint64.
const ContextUserID = "user_id"

// UserID returns the authenticated user id set by JWTAuth or OptionalJWT.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ContextUserID).(uint64)
	return id, ok && id != 0
}

// userKey renders the user id for cache and rate limit keys, "anon" for
// guests.
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
