package middleware

import "github.com/gin-gonic/gin"

// errorBody is the JSON shape every middleware in this package aborts
// a request with. Kept as a named type (instead of ad hoc gin.H
// literals) so auth and rate-limit rejections read identically to
// callers.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func abortJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorBody{Success: false, Error: message})
}
