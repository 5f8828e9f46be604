package handlers

import (
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"mesoserve/internal/config"
	"mesoserve/internal/query"
	"mesoserve/internal/stats"
	"mesoserve/internal/store"
	"mesoserve/internal/units"
)

type statsRequest struct {
	EntityID string       `json:"entityId"`
	TimeUnit string       `json:"timeUnit"`
	Start    *int64       `json:"start"`
	End      *int64       `json:"end"`
	Data     []statsField `json:"data"`
}

type statsField struct {
	FieldID  string   `json:"fieldId"`
	Unit     string   `json:"unit"`
	Decimals *int     `json:"decimals"`
	Stats    []string `json:"stats"`
}

// StatsHandler serves streaming min/max extraction over an entity's rows.
// The result set is consumed row by row through per-field trackers and
// never materialized.
func StatsHandler(doc *config.Document, stores *store.Stores) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		preventCache(ctx)

		var req statsRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid request JSON")
			return
		}
		if req.EntityID == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "must specify an entityId")
			return
		}
		cfg, ok := doc.Entity(req.EntityID)
		if !ok {
			writeError(ctx, &query.ValidationError{Param: "entityId", Msg: "entity " + req.EntityID + " has no configuration"})
			return
		}

		dialect, err := query.DialectFromID(doc.DataSources[cfg.DataSource].Dialect)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, err.Error())
			return
		}
		db, ok := stores.For(cfg.DataSource)
		if !ok {
			errResponse(ctx, fasthttp.StatusInternalServerError, "no connection for data source "+cfg.DataSource)
			return
		}

		timeUnit := units.Unit(req.TimeUnit)
		pkUnit := cfg.PrimaryKeyUnit()
		if timeUnit == "" {
			timeUnit = pkUnit
		}
		if !units.Convertible(timeUnit, pkUnit) || !units.Convertible(pkUnit, timeUnit) {
			writeError(ctx, &query.ValidationError{Param: "timeUnit", Msg: "no converter between time unit " + string(timeUnit) + " and column unit " + string(pkUnit)})
			return
		}

		fields, colUnits, err := statsFields(cfg, req.Data)
		if err != nil {
			writeError(ctx, err)
			return
		}

		sqlText, args, err := buildStatsQuery(cfg, dialect, req, timeUnit, pkUnit, fields)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.Response.Header.Set("X-Meso-Query", sqlText)

		start := time.Now()
		rows, err := db.Raw(sqlText, args...).Rows()
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "query failed: "+err.Error())
			return
		}
		defer rows.Close()

		agg := stats.NewAggregator(fields)
		timeVal := sql.NullFloat64{}
		vals := make([]sql.NullFloat64, len(fields))
		ptrs := make([]any, len(fields)+1)
		ptrs[0] = &timeVal
		for i := range vals {
			ptrs[i+1] = &vals[i]
		}
		for rows.Next() {
			if err := rows.Scan(ptrs...); err != nil {
				errResponse(ctx, fasthttp.StatusInternalServerError, "failed to read result rows: "+err.Error())
				return
			}
			if timeVal.Valid {
				agg.Observe(timeVal.Float64, vals)
			}
		}
		if err := rows.Err(); err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to read result rows: "+err.Error())
			return
		}

		result, err := agg.Result(colUnits, pkUnit, timeUnit)
		if err != nil {
			writeError(ctx, err)
			return
		}

		elapsed := time.Since(start).Seconds()
		ctx.Response.Header.Set("X-Meso-Process-Time", strconv.FormatFloat(elapsed, 'f', -1, 64))
		observeQuery(req.EntityID, "stats", elapsed)

		jsonResponse(ctx, result)
	}
}

// statsFields validates the requested fields against the entity definition
// and assembles the tracker requests.
func statsFields(cfg *config.Entity, data []statsField) ([]stats.FieldRequest, map[string]units.Unit, error) {
	if len(data) == 0 {
		return nil, nil, &query.ValidationError{Param: "data", Msg: "must specify at least one data field"}
	}
	fields := make([]stats.FieldRequest, 0, len(data))
	colUnits := make(map[string]units.Unit, len(data))
	for _, f := range data {
		col, ok := cfg.Columns[f.FieldID]
		if !ok {
			return nil, nil, &query.ValidationError{Param: "data", Msg: "undefined field " + f.FieldID}
		}
		unit := units.Unit(f.Unit)
		if unit != "" {
			if col.Unit == "" {
				return nil, nil, &query.ValidationError{Param: "data", Msg: "cannot convert field " + f.FieldID + " to unit " + f.Unit + ": field has no defined unit"}
			}
			if !units.Convertible(col.Unit, unit) {
				return nil, nil, &query.ValidationError{Param: "data", Msg: "no converter from unit " + string(col.Unit) + " to " + f.Unit + " for field " + f.FieldID}
			}
		}
		kinds := make([]stats.Kind, 0, len(f.Stats))
		for _, s := range f.Stats {
			kind, ok := stats.KindFromString(s)
			if !ok {
				return nil, nil, &query.ValidationError{Param: "data", Msg: "invalid stat " + s + " for field " + f.FieldID}
			}
			kinds = append(kinds, kind)
		}
		fields = append(fields, stats.FieldRequest{FieldID: f.FieldID, Unit: unit, Decimals: f.Decimals, Kinds: kinds})
		colUnits[f.FieldID] = col.Unit
	}
	return fields, colUnits, nil
}

// buildStatsQuery selects the time column plus the requested fields,
// bounded by the optional start/end. Bounds arrive in the request's time
// unit and are converted to the key column's unit inside the SQL; negative
// bounds mean that many units before now.
func buildStatsQuery(cfg *config.Entity, dialect query.Dialect, req statsRequest, timeUnit, pkUnit units.Unit, fields []stats.FieldRequest) (string, []any, error) {
	selects := make([]string, 0, len(fields)+1)
	selects = append(selects, dialect.Quote(cfg.PrimaryKey))
	for _, f := range fields {
		selects = append(selects, dialect.Quote(f.FieldID))
	}
	sqlText := "select " + strings.Join(selects, ", ") + " from " + dialect.Quote(cfg.TableName)

	boundExpr, err := units.SQLFormula("?", timeUnit, pkUnit)
	if err != nil {
		return "", nil, err
	}

	var conds []string
	var args []any
	if req.Start != nil {
		bound, err := resolveBound(*req.Start, timeUnit)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, dialect.Quote(cfg.PrimaryKey)+" >= "+boundExpr)
		args = append(args, bound)
	}
	if req.End != nil {
		bound, err := resolveBound(*req.End, timeUnit)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, dialect.Quote(cfg.PrimaryKey)+" <= "+boundExpr)
		args = append(args, bound)
	}
	if len(conds) > 0 {
		sqlText += " where " + strings.Join(conds, " and ")
	}
	return sqlText, args, nil
}

// resolveBound maps a negative bound to now minus that many request time
// units; non-negative bounds pass through.
func resolveBound(v int64, timeUnit units.Unit) (float64, error) {
	if v >= 0 {
		return float64(v), nil
	}
	now, err := units.Convert(float64(time.Now().Unix()), units.S, timeUnit)
	if err != nil {
		return 0, err
	}
	return now + float64(v), nil
}
