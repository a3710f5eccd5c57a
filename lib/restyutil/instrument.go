package restyutil

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// InstrumentOutput receives one rendered request/response exchange per call.
type InstrumentOutput interface {
	Write(id string, contents string)
}

type dumper struct {
	output    InstrumentOutput
	idcounter *uint64
}

type messageIdKey struct{}

// InstrumentClient dumps every exchange made by `client` into `output`
// while debug logging is enabled. A nil `output` makes it a no-op.
// Tracing is left to telemetry.InstrumentResty.
func InstrumentClient(client *resty.Client, output InstrumentOutput) {
	if output == nil {
		return
	}

	var idcounter uint64
	d := dumper{output: output, idcounter: &idcounter}
	client.OnBeforeRequest(d.onBeforeRequest)
	client.OnAfterResponse(d.onAfterResponse)
	client.OnError(d.onError)
}

func (d dumper) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	ctx := req.Context()
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return nil
	}

	messageId := strconv.FormatUint(atomic.AddUint64(d.idcounter, 1), 10)
	slog.DebugContext(
		ctx, "start request",
		"method", req.Method,
		"url", req.URL,
		"message_id", messageId,
	)
	req.SetContext(context.WithValue(ctx, messageIdKey{}, messageId))
	return nil
}

func (d dumper) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	ctx := res.Request.Context()
	messageId, ok := ctx.Value(messageIdKey{}).(string)
	if !ok {
		return nil
	}

	d.output.Write(messageId, formatHttpMessage(res))
	slog.DebugContext(
		ctx, "request finished",
		"method", res.Request.Method,
		"url", res.Request.URL,
		"status", res.StatusCode(),
		"message_id", messageId,
	)
	return nil
}

func (d dumper) onError(req *resty.Request, err error) {
	messageId, ok := req.Context().Value(messageIdKey{}).(string)
	if !ok {
		return
	}
	slog.DebugContext(
		req.Context(), "request failed",
		"method", req.Method,
		"url", req.URL,
		"message_id", messageId,
		"err", err,
	)
}
