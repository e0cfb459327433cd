package middleware

import (
	"encoding/json"
	"strings"

	"investment-core/internal/core/domain"
	"investment-core/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditActionHTTP marks entries written by the audit middleware.
const AuditActionHTTP domain.AuditAction = "HTTP_WRITE"

// AuditLog records successful operator writes with the caller's IP.
// Services audit the business event itself; this entry ties it to a request.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" || c.Request.Method == "OPTIONS" {
			return
		}

		resourceType, ok := resourceFor(c.FullPath())
		if !ok {
			return
		}

		var actorID *uuid.UUID
		if id, ok := AccountID(c); ok {
			actorID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ActorID:      actorID,
			Action:       AuditActionHTTP,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
		})
	}
}

func resourceFor(route string) (string, bool) {
	if strings.HasPrefix(route, "/api/v1/admin/withdrawals/") {
		return "withdrawal", true
	}
	return "", false
}
