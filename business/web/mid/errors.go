package mid

import (
	"context"
	"net/http"

	"github.com/ardanlabs/ubilog/business/web/errs"
	"github.com/ardanlabs/ubilog/foundation/validate"
	"github.com/ardanlabs/ubilog/foundation/web"
	"go.uber.org/zap"
)

// Errors handles errors coming out of the call chain. It detects normal
// application errors which are used to respond to the client in a uniform way.
// Unexpected errors (status >= 500) are logged.
func Errors(log *zap.SugaredLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			log.Errorw("ERROR", "traceid", web.GetTraceID(ctx), "message", err)

			var er errs.Response
			var status int

			switch {
			case validate.IsFieldErrors(err):
				er = errs.Response{
					Error:  "data validation error",
					Fields: validate.GetFieldErrors(err).Fields(),
				}
				status = http.StatusBadRequest

			case errs.IsTrusted(err):
				te := errs.GetTrusted(err)
				er = errs.Response{
					Error: te.Error(),
				}
				status = te.Status

			default:
				er = errs.Response{
					Error: http.StatusText(http.StatusInternalServerError),
				}
				status = http.StatusInternalServerError
			}

			if err := web.Respond(ctx, w, er, status); err != nil {
				return err
			}

			// If we receive the shutdown err we need to return it
			// back to the base handler to shut down the service.
			if web.IsShutdown(err) {
				return err
			}

			return nil
		}

		return h
	}

	return m
}
