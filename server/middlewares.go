package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/echocheck/echocheck/colors"
)

type ResponseWriterWithStatus struct {
	http.ResponseWriter
	Status int
}

func (r *ResponseWriterWithStatus) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		responseWriter := &ResponseWriterWithStatus{
			ResponseWriter: w,
			Status:         200,
		}

		defer func() {
			responseStatus := colors.Green(responseWriter.Status)
			if responseWriter.Status >= 400 {
				responseStatus = colors.Red(responseWriter.Status)
			}

			logg.Infof("%v %v %v %v",
				r.Method,
				r.RequestURI,
				responseStatus,
				colors.Yellow(fmt.Sprintf("[%v]", time.Since(start))))
		}()

		next.ServeHTTP(responseWriter, r)
	})
}

// initialContextMiddleware decodes whatever bearer token came with the
// request & stashes the result on the request context; whether a route
// needs it is the protected middleware's call.
func (h *requestHandler) initialContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Content-Type", "application/json")

		ctx := context.WithValue(
			r.Context(),
			RequestContextKey("decodedJWT"),
			h.decodeAndVerifyAuthHeader(r.Header.Get("Authorization")),
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *requestHandler) protectedRouteMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decodedJWT := r.Context().Value(RequestContextKey("decodedJWT")).(DecodedJWT)
		if decodedJWT.ErrorMsg != "" {
			writeResponse(w, ResponsePayload{Errors: []string{decodedJWT.ErrorMsg}}, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
