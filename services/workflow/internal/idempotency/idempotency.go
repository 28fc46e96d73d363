package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const Header = "Idempotency-Key"

type ActorContext struct {
	ActorID        string
	IdempotencyKey string
}

// Record is a stored response, replayed verbatim.
type Record struct {
	ActorID        string
	IdempotencyKey string
	Endpoint       string
	ResponseStatus int
	ResponseBody   []byte
}

type Store interface {
	GetIdempotencyRecord(ctx context.Context, actorID, idempotencyKey, endpoint string) (*Record, error)
	SaveIdempotencyRecord(ctx context.Context, rec Record) error
}

func FromRequest(r *http.Request, actorID string) ActorContext {
	return ActorContext{ActorID: actorID, IdempotencyKey: strings.TrimSpace(r.Header.Get(Header))}
}

func Replay(ctx context.Context, st Store, actor ActorContext, endpoint string) (int, []byte, bool, error) {
	if actor.IdempotencyKey == "" {
		return 0, nil, false, nil
	}
	rec, err := st.GetIdempotencyRecord(ctx, actor.ActorID, actor.IdempotencyKey, endpoint)
	if err != nil {
		return 0, nil, false, err
	}
	if rec == nil {
		return 0, nil, false, nil
	}
	return rec.ResponseStatus, rec.ResponseBody, true, nil
}

func Save(ctx context.Context, st Store, actor ActorContext, endpoint string, status int, response any) error {
	if actor.IdempotencyKey == "" {
		return nil
	}
	buf := bytes.Buffer{}
	if err := json.NewEncoder(&buf).Encode(response); err != nil {
		return err
	}
	return st.SaveIdempotencyRecord(ctx, Record{
		ActorID:        actor.ActorID,
		IdempotencyKey: actor.IdempotencyKey,
		Endpoint:       endpoint,
		ResponseStatus: status,
		ResponseBody:   bytes.TrimSpace(buf.Bytes()),
	})
}
