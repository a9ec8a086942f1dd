package cerr

import (
	"context"
	"net/http"
)

type apiResponseKey struct{}

// apiResponse collects what a chi handler wants written. The middleware
// writes it once the handler returns.
type apiResponse struct {
	body any
	text *string
	err  error
}

func apiResponseFrom(ctx context.Context) *apiResponse {
	r, _ := ctx.Value(apiResponseKey{}).(*apiResponse)
	return r
}

// SetJSONResponse answers the request with body encoded as JSON.
func SetJSONResponse(ctx context.Context, body any) {
	if r := apiResponseFrom(ctx); r != nil {
		r.body, r.text = body, nil
	}
}

// SetTextResponse answers the request with text as text/plain.
func SetTextResponse(ctx context.Context, text string) {
	if r := apiResponseFrom(ctx); r != nil {
		r.body, r.text = nil, &text
	}
}

// SetJSONError answers the request with err. It wins over any response set
// before or after.
func SetJSONError(ctx context.Context, err error) {
	if r := apiResponseFrom(ctx); r != nil {
		r.err = err
	}
}

func SetNewJSONError(ctx context.Context, code Code, msg string, err error) {
	SetJSONError(ctx, NewError(code, msg, err))
}

func (r *apiResponse) write(ctx context.Context, rw http.ResponseWriter) {
	switch {
	case r.err != nil:
		writeJSONError(ctx, rw, resolve(ctx, r.err))
	case r.text != nil:
		writeText(ctx, rw, *r.text)
	default:
		writeJSON(ctx, rw, r.body)
	}
}

// NewConvertConnectErrorChiMiddleware lets handlers under it report results
// through SetJSONResponse, SetTextResponse and SetJSONError instead of
// writing to the ResponseWriter. Errors use the same codes as the connect
// handlers.
func NewConvertConnectErrorChiMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			resp := &apiResponse{}
			ctx := context.WithValue(req.Context(), apiResponseKey{}, resp)
			next.ServeHTTP(rw, req.WithContext(ctx))
			resp.write(ctx, rw)
		})
	}
}
