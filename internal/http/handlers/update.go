package handlers

import (
	"encoding/json"
	"strings"

	"github.com/valyala/fasthttp"

	"mesoserve/internal/entity"
	httpctx "mesoserve/internal/http/ctx"
)

// UpdateHandler ingests one or more records into the entity resolved by the
// write-auth middleware. The data parameter carries either a single JSON
// object or an array of objects; every record must name the same columns.
func UpdateHandler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		te, ok := httpctx.EntityFromCtx(ctx)
		if !ok {
			errResponse(ctx, fasthttp.StatusInternalServerError, "no entity resolved for update")
			return
		}

		raw := param(ctx, "data")
		if raw == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "must specify data to update")
			return
		}

		records, err := parseRecords(raw)
		if err != nil {
			writeError(ctx, err)
			return
		}

		if err := te.Upsert(records); err != nil {
			writeError(ctx, err)
			return
		}

		countIngested(te.ID(), len(records))
		ctx.SetStatusCode(fasthttp.StatusOK)
	}
}

// parseRecords decodes the data payload, accepting a bare object as a
// one-record batch.
func parseRecords(raw string) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &entity.DataIntegrityError{Msg: "no records specified"}
	}
	if strings.HasPrefix(trimmed, "{") {
		var record map[string]any
		if err := json.Unmarshal([]byte(trimmed), &record); err != nil {
			return nil, &entity.DataIntegrityError{Msg: "invalid record JSON: " + err.Error()}
		}
		return []map[string]any{record}, nil
	}
	var records []map[string]any
	if err := json.Unmarshal([]byte(trimmed), &records); err != nil {
		return nil, &entity.DataIntegrityError{Msg: "invalid record JSON: " + err.Error()}
	}
	return records, nil
}
