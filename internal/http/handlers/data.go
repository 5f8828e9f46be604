package handlers

import (
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"mesoserve/internal/config"
	"mesoserve/internal/entity"
	"mesoserve/internal/query"
	"mesoserve/internal/store"
)

// DataHandler serves the read/aggregate endpoint: request parameters are
// compiled into dialect-specific SQL, executed against the entity's data
// source, and streamed back as a JSON array of row arrays. The generated
// SQL and its execution time are exposed as diagnostic response headers.
func DataHandler(doc *config.Document, stores *store.Stores) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		preventCache(ctx)

		spec, err := query.NewParser(requestParams(ctx), doc).Parse()
		if err != nil {
			writeError(ctx, err)
			return
		}

		dialect, err := query.DialectFromID(doc.DataSources[spec.Entity.DataSource].Dialect)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, err.Error())
			return
		}
		db, ok := stores.For(spec.Entity.DataSource)
		if !ok {
			errResponse(ctx, fasthttp.StatusInternalServerError, "no connection for data source "+spec.Entity.DataSource)
			return
		}

		built, err := query.Build(spec, dialect)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.Response.Header.Set("X-Meso-Query", built.SQL)

		start := time.Now()
		rows, err := db.Raw(built.SQL, built.Args...).Rows()
		if err != nil && store.IsMissingTable(err) {
			// first read against a fresh entity: provision the table
			// and retry once, so the client sees an empty result
			// instead of a failure
			te := entity.New(spec.EntityID, spec.Entity, db, dialect)
			if cerr := te.EnsureSchema(); cerr != nil && !store.IsTableExists(cerr) {
				writeError(ctx, cerr)
				return
			}
			rows, err = db.Raw(built.SQL, built.Args...).Rows()
		}
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "query failed: "+err.Error())
			return
		}
		defer rows.Close()

		out, err := collectRows(rows)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to read result rows: "+err.Error())
			return
		}

		elapsed := time.Since(start).Seconds()
		ctx.Response.Header.Set("X-Meso-Query-Time", strconv.FormatFloat(elapsed, 'f', -1, 64))
		observeQuery(spec.EntityID, "data", elapsed)

		jsonResponse(ctx, out)
	}
}

// rowScanner is the slice of *sql.Rows that collectRows needs.
type rowScanner interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectRows(rows rowScanner) ([][]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := make([][]any, 0)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]any, len(cols))
		for i, v := range vals {
			row[i] = normalizeValue(v)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
