package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"mesoserve/internal/entity"
	"mesoserve/internal/query"
	"mesoserve/internal/units"
)

// RequestLogger returns fasthttp middleware that logs method, path, status, duration.
func RequestLogger(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		log.Printf("%s %s -> %d (%s) ip=%s", ctx.Method(), ctx.Path(), ctx.Response.StatusCode(), time.Since(start), ctx.RemoteAddr())
	}
}

func jsonResponse(ctx *fasthttp.RequestCtx, data any) {
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(data)
	ctx.SetBody(body)
}

func errResponse(ctx *fasthttp.RequestCtx, code int, msg string) {
	ctx.SetStatusCode(code)
	ctx.SetBodyString(msg)
}

// writeError maps the error taxonomy to HTTP statuses: malformed or invalid
// requests are 400, security failures 403, configuration and database
// failures 500. The error text always carries enough detail to reconstruct
// the failing parameter or SQL.
func writeError(ctx *fasthttp.RequestCtx, err error) {
	var (
		parseErr      *query.ParseError
		validationErr *query.ValidationError
		integrityErr  *entity.DataIntegrityError
		conversionErr *units.ConversionError
		securityErr   *entity.SecurityError
	)
	switch {
	case errors.As(err, &parseErr), errors.As(err, &validationErr),
		errors.As(err, &integrityErr), errors.As(err, &conversionErr):
		errResponse(ctx, fasthttp.StatusBadRequest, err.Error())
	case errors.As(err, &securityErr):
		errResponse(ctx, fasthttp.StatusForbidden, err.Error())
	default:
		errResponse(ctx, fasthttp.StatusInternalServerError, err.Error())
	}
}

// preventCache marks responses as uncacheable; readings change continuously.
func preventCache(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	ctx.Response.Header.Set("Pragma", "no-cache")
	ctx.Response.Header.Set("Expires", "0")
}

// param reads a request parameter from the query string, falling back to
// the POST form body.
func param(ctx *fasthttp.RequestCtx, name string) string {
	if v := ctx.QueryArgs().Peek(name); len(v) > 0 {
		return string(v)
	}
	return string(ctx.PostArgs().Peek(name))
}

// requestParams flattens query and form parameters into one map for the
// parameter parser.
func requestParams(ctx *fasthttp.RequestCtx) map[string]string {
	params := make(map[string]string)
	ctx.PostArgs().VisitAll(func(key, value []byte) {
		params[string(key)] = string(value)
	})
	ctx.QueryArgs().VisitAll(func(key, value []byte) {
		params[string(key)] = string(value)
	})
	return params
}

// normalizeValue turns driver-specific scan results into JSON-friendly
// values. Numeric text (mysql returns computed columns as []byte) becomes a
// float; SQL NULL stays nil.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		if f, err := strconv.ParseFloat(string(val), 64); err == nil {
			return f
		}
		return string(val)
	default:
		return v
	}
}
