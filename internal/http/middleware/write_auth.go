package middleware

import (
	"errors"

	"github.com/valyala/fasthttp"

	"mesoserve/internal/config"
	"mesoserve/internal/entity"
	httpctx "mesoserve/internal/http/ctx"
	"mesoserve/internal/query"
	"mesoserve/internal/store"
)

// WriteAuth resolves the target entity for a write request and validates
// its security key before the ingest handler runs. The resolved entity is
// stored on the request context.
func WriteAuth(doc *config.Document, stores *store.Stores) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			entityID := param(ctx, "entity_id")
			if entityID == "" {
				ctx.SetStatusCode(fasthttp.StatusBadRequest)
				ctx.SetBodyString("must specify an entity_id")
				return
			}
			cfg, ok := doc.Entity(entityID)
			if !ok {
				ctx.SetStatusCode(fasthttp.StatusBadRequest)
				ctx.SetBodyString("entity " + entityID + " has no configuration")
				return
			}
			ds := doc.DataSources[cfg.DataSource]
			dialect, err := query.DialectFromID(ds.Dialect)
			if err != nil {
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetBodyString(err.Error())
				return
			}
			db, ok := stores.For(cfg.DataSource)
			if !ok {
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetBodyString("no connection for data source " + cfg.DataSource)
				return
			}

			te := entity.New(entityID, cfg, db, dialect)
			if err := te.CanUpdate(param(ctx, "security_key")); err != nil {
				var secErr *entity.SecurityError
				if errors.As(err, &secErr) {
					ctx.SetStatusCode(fasthttp.StatusForbidden)
				} else {
					ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				}
				ctx.SetBodyString("unable to update entity: " + err.Error())
				return
			}

			httpctx.SetEntity(ctx, te)
			next(ctx)
		}
	}
}

// param reads a request parameter from the query string, falling back to
// the POST form body.
func param(ctx *fasthttp.RequestCtx, name string) string {
	if v := ctx.QueryArgs().Peek(name); len(v) > 0 {
		return string(v)
	}
	return string(ctx.PostArgs().Peek(name))
}
