package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/accountlink/internal/observability/logger"
)

// errorResponse es lo único que ve el cliente.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError escribe una respuesta HTTP basada en el error proporcionado.
// Maneja automáticamente errores de tipo *AppError y errores genéricos.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteErrorCtx es WriteError más un log con el logger del request para los 5xx.
func WriteErrorCtx(w http.ResponseWriter, r *http.Request, err error) {
	appErr := FromError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.From(r.Context()).Error("request failed",
			logger.String("code", appErr.Code),
			logger.Err(appErr.Err),
		)
	}
	WriteError(w, appErr)
}

// ResultStatus devuelve ok si el resultado del pipeline fue exitoso y el
// status de ErrUnprocessableEntity si trae errores de validación. El body
// sigue siendo la respuesta con sus errores, no un AppError.
func ResultStatus(success bool, ok int) int {
	if success {
		return ok
	}
	return ErrUnprocessableEntity.HTTPStatus
}
