package api

import (
	"errors"
	"net/http"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/authn"
	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
	"github.com/dbca-wa/science-projects-service-sub000/pkg/httpx"

	"github.com/rs/zerolog/hlog"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{authn.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrInvalidStage, http.StatusBadRequest, "INVALID_STAGE"},
	{domain.ErrGuardViolation, http.StatusConflict, "GUARD_VIOLATION"},
	{domain.ErrRoleMismatch, http.StatusForbidden, "ROLE_MISMATCH"},
	{domain.ErrOutOfOrderApproval, http.StatusConflict, "OUT_OF_ORDER_APPROVAL"},
	{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{domain.ErrConflict, http.StatusConflict, "CONFLICT"},
	{domain.ErrInvalidKind, http.StatusBadRequest, "INVALID_KIND"},
}

// statusFor maps a workflow error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "DB_ERROR"
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= 500 {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	} else {
		hlog.FromRequest(r).Debug().Err(err).Str("code", code).Msg("request rejected")
	}
	httpx.WriteRequestError(w, r, status, code, err.Error(), nil)
}
