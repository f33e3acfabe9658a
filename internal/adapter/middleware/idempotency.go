package middleware

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	httpadp "zkloan/internal/adapter/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "Ax-Request-Id"
	HeaderRequestAt = "Ax-Request-At"
	// HeaderReplayed is set on responses served from the store.
	HeaderReplayed = "Ax-Idempotent-Replay"

	// MaxClockSkew bounds how far Ax-Request-At may be from server time.
	MaxClockSkew = 10 * time.Minute

	claimContextKey = "idempotency.claim"
)

var reAccount = regexp.MustCompile(`^[a-f0-9]{32}$`)

// Idempotency makes the mutating lending routes safe to retry. The first
// request under a key runs; later ones with the same body get the stored
// response, and ones with a different body get 409. Server errors are never
// stored, so a retry after a 5xx runs the handler again.
type Idempotency struct {
	store replayStore
	log   *zap.Logger
	now   func() time.Time
}

func NewIdempotency(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Idempotency {
	if log == nil {
		log = zap.NewNop()
	}
	return &Idempotency{
		store: replayStore{rdb: rdb, ttl: ttl},
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type claim struct {
	key    string
	digest string
}

// caller is the validated idempotency header set of one request.
type caller struct {
	requestID string
	account   string
	at        time.Time
}

func (m *Idempotency) Middleware() echo.MiddlewareFunc {
	dump := echomw.BodyDump(m.settle)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		recorded := dump(next)
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			who, err := readCaller(req.Header, m.now())
			if err != nil {
				return c.JSON(http.StatusBadRequest, httpadp.ErrorResponse{Error: err.Error()})
			}

			var body []byte
			if req.Body != nil {
				if body, err = io.ReadAll(req.Body); err != nil {
					return c.JSON(http.StatusBadRequest, httpadp.ErrorResponse{Error: "unreadable body"})
				}
			}
			req.Body = io.NopCloser(bytes.NewReader(body))

			cl := claim{key: recordKey(who.account, resource(c), who.requestID), digest: digest(body)}
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()

			first, err := m.store.claim(ctx, cl.key, record{Digest: cl.digest, At: m.now()})
			if err != nil {
				m.log.Warn("idempotency claim", zap.String("key", cl.key), zap.Error(err))
				return c.JSON(http.StatusServiceUnavailable, httpadp.ErrorResponse{Error: "idempotency store unavailable"})
			}
			if !first {
				return m.replay(ctx, c, cl)
			}

			c.Set(claimContextKey, cl)
			return recorded(c)
		}
	}
}

func (m *Idempotency) replay(ctx context.Context, c echo.Context, cl claim) error {
	prev, found, err := m.store.load(ctx, cl.key)
	switch {
	case err != nil:
		m.log.Warn("idempotency load", zap.String("key", cl.key), zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, httpadp.ErrorResponse{Error: "idempotency store unavailable"})
	case !found:
		return c.JSON(http.StatusConflict, httpadp.ErrorResponse{Error: "request is being retried, try again"})
	case prev.Digest != cl.digest:
		return c.JSON(http.StatusConflict, httpadp.ErrorResponse{Error: HeaderRequestID + " reused with a different body"})
	case !prev.Done:
		return c.JSON(http.StatusConflict, httpadp.ErrorResponse{Error: "request is already in progress"})
	}
	ct := prev.ContentType
	if ct == "" {
		ct = echo.MIMEApplicationJSONCharsetUTF8
	}
	c.Response().Header().Set(HeaderReplayed, "true")
	return c.Blob(prev.Status, ct, prev.Body)
}

// settle runs after the handler has written its response.
func (m *Idempotency) settle(c echo.Context, _, resBody []byte) {
	cl, ok := c.Get(claimContextKey).(claim)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status := c.Response().Status
	if status >= http.StatusInternalServerError {
		if err := m.store.release(ctx, cl.key); err != nil {
			m.log.Warn("idempotency release", zap.String("key", cl.key), zap.Error(err))
		}
		return
	}
	err := m.store.finish(ctx, cl.key, record{
		Digest:      cl.digest,
		Status:      status,
		ContentType: c.Response().Header().Get(echo.HeaderContentType),
		Body:        resBody,
		At:          m.now(),
	})
	if err != nil {
		m.log.Warn("idempotency store response", zap.String("key", cl.key), zap.Error(err))
	}
}

// resource is the route with its parameters filled in, e.g.
// "post:loans/<borrower>/repay" or "post:pool/deposits".
func resource(c echo.Context) string {
	parts := strings.Split(strings.Trim(c.Path(), "/"), "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") {
			parts[i] = c.Param(p[1:])
		}
	}
	return strings.ToLower(c.Request().Method) + ":" + strings.Join(parts, "/")
}

func readCaller(h http.Header, now time.Time) (caller, error) {
	var out caller

	raw := strings.TrimSpace(h.Get(HeaderRequestID))
	if raw == "" {
		return out, fmt.Errorf("missing %s", HeaderRequestID)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return out, fmt.Errorf("invalid %s: want a uuid or 32 hex digits", HeaderRequestID)
	}
	out.requestID = id.String()

	if out.at, err = parseRequestAt(h.Get(HeaderRequestAt)); err != nil {
		return out, err
	}
	if d := out.at.Sub(now); d > MaxClockSkew || d < -MaxClockSkew {
		return out, fmt.Errorf("%s too far from server time", HeaderRequestAt)
	}

	out.account = strings.TrimSpace(h.Get(httpadp.HeaderAccountID))
	if out.account == "" {
		return out, fmt.Errorf("missing %s", httpadp.HeaderAccountID)
	}
	if !reAccount.MatchString(out.account) {
		return out, fmt.Errorf("invalid %s", httpadp.HeaderAccountID)
	}
	return out, nil
}

// parseRequestAt takes epoch seconds, epoch milliseconds or an RFC 3339 time
// with an explicit zone.
func parseRequestAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing %s", HeaderRequestAt)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be epoch seconds, epoch milliseconds or RFC 3339 with a zone", HeaderRequestAt)
	}
	return t.UTC(), nil
}
