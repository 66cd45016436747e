package middlewares

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/accountlink/internal/dispatch"
	"github.com/dropDatabas3/accountlink/internal/observability/logger"
)

// statusRecorder captura el status code y bytes escritos de la respuesta.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.status = http.StatusOK
		s.wroteHeader = true
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func recorderFor(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

// userHolder lo completan los middlewares de auth para que el log final
// tenga el user_id aunque el contexto se haya reemplazado más adentro.
type userHolder struct{ id string }

type userHolderKey struct{}

func contextWithHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, userHolderKey{}, h)
}

func noteUser(r *http.Request, u dispatch.CurrentUser) {
	if h, ok := r.Context().Value(userHolderKey{}).(*userHolder); ok && u.Authenticated {
		h.id = u.UserID
	}
}

// WithLogging registra cada request con campos estructurados e inyecta un
// logger scoped (method, path; el request_id ya viene de WithRequestID).
//
//	{"level":"info","msg":"request completed","request_id":"...","method":"GET","path":"/account/profile","status":200,"bytes":256,"duration":0.004}
func WithLogging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLog := logger.From(r.Context()).With(
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
			)
			holder := &userHolder{}
			ctx := logger.ToContext(r.Context(), reqLog)
			ctx = contextWithHolder(ctx, holder)

			rec := recorderFor(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			fields := []zap.Field{
				logger.Status(rec.status),
				logger.Int("bytes", rec.bytes),
				logger.Duration(time.Since(start)),
			}
			if holder.id != "" {
				fields = append(fields, logger.UserID(holder.id))
			}
			switch {
			case rec.status >= 500:
				reqLog.Error("request failed", fields...)
			case rec.status >= 400:
				reqLog.Warn("request completed with client error", fields...)
			default:
				reqLog.Info("request completed", fields...)
			}
		})
	}
}
