package ctx

import (
	"github.com/valyala/fasthttp"

	"mesoserve/internal/entity"
)

const entityKey = "entity"

// SetEntity stores the resolved, write-authorized entity on the request.
func SetEntity(ctx *fasthttp.RequestCtx, e *entity.TableEntity) {
	ctx.SetUserValue(entityKey, e)
}

// EntityFromCtx returns the entity resolved by the write-auth middleware.
func EntityFromCtx(ctx *fasthttp.RequestCtx) (*entity.TableEntity, bool) {
	v := ctx.UserValue(entityKey)
	if v == nil {
		return nil, false
	}
	e, ok := v.(*entity.TableEntity)
	return e, ok
}
