package response

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/advieskamer/advies-backend/internal/pkg/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondDomainError maps the typed error taxonomy onto HTTP statuses. The
// error text is passed through verbatim; operators need the exact diagnostic.
func RespondDomainError(c *gin.Context, err error) {
	var (
		cfgErr      *errors.ConfigurationMissingError
		modelErr    *errors.ModelInvocationError
		preErr      *errors.StagePreconditionError
		stageErr    *errors.StageNotFoundError
		textErr     *errors.TextNotFoundError
		conflictErr *errors.VersionConflictError
	)
	switch {
	case stderrors.Is(err, errors.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case stderrors.Is(err, errors.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	case stderrors.As(err, &cfgErr):
		RespondError(c, http.StatusUnprocessableEntity, "configuration_missing", err)
	case stderrors.As(err, &preErr):
		RespondError(c, http.StatusConflict, "stage_precondition", err)
	case stderrors.As(err, &stageErr):
		RespondError(c, http.StatusNotFound, "stage_not_found", err)
	case stderrors.As(err, &textErr):
		RespondError(c, http.StatusUnprocessableEntity, "text_not_found", err)
	case stderrors.As(err, &conflictErr):
		RespondError(c, http.StatusConflict, "version_conflict", err)
	case stderrors.As(err, &modelErr):
		RespondError(c, http.StatusBadGateway, "model_invocation_failed", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
