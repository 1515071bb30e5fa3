package middleware // reusable HTTP middleware for the bot's side endpoints

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-bot/internal/utils"
)

const reportClaimsKey = "report_claims"

// ReportToken verifies the signed report link carried in the :token path
// parameter and stores its claims in the context.  Forged, expired and
// malformed links are rejected with 401 before the handler runs.  With an
// empty secret links are disabled and every request is rejected.
func ReportToken(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "report links are disabled"})
			}
			claims, err := utils.ParseReportToken(secret, c.Param("token"))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired link"})
			}
			c.Set(reportClaimsKey, claims)
			return next(c)
		}
	}
}

// ReportClaimsFrom returns the claims stored by ReportToken.
func ReportClaimsFrom(c echo.Context) (utils.ReportClaims, bool) {
	claims, ok := c.Get(reportClaimsKey).(utils.ReportClaims)
	return claims, ok
}
