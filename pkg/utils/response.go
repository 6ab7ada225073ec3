package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope wraps every JSON body the API returns.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *AppError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type Meta struct {
	Total int64 `json:"total"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// List writes a collection with its length in meta. A nil slice is sent as [].
func List[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    items,
		Meta:    &Meta{Total: int64(len(items))},
	})
}

func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Envelope{Success: true, Data: data})
}

// Fail writes err with the status its code maps to.
func Fail(c *gin.Context, err *AppError) {
	c.JSON(err.Status(), Envelope{Success: false, Error: err})
}

// Invalid is shorthand for a validation failure.
func Invalid(c *gin.Context, message, details string) {
	Fail(c, NewAppError(ErrCodeValidation, message, details))
}
