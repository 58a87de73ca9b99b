package api

import "github.com/gin-gonic/gin"

// Envelope is the uniform JSON response shape. Clients surface Message in
// a dismissible alert whenever Status is not "ok".
type Envelope struct {
	Status  string `json:"status"`
	Result  any    `json:"result"`
	Message string `json:"message"`
}

func respondOK(c *gin.Context, result any, message string) {
	c.JSON(200, Envelope{Status: "ok", Result: result, Message: message})
}

func respondFail(c *gin.Context, code int, message string) {
	c.JSON(code, Envelope{Status: "failed", Result: nil, Message: message})
}
