package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
)

type ResponseCacheConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

// ResponseCache memoizes successful GET responses for a short TTL. Entries
// are keyed per actor so one user's scoped listing never leaks to another.
type ResponseCache struct {
	store *gocache.Cache
}

type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

func NewResponseCache(config ResponseCacheConfig) *ResponseCache {
	if config.TTL <= 0 {
		config.TTL = 30 * time.Second
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	return &ResponseCache{
		store: gocache.New(config.TTL, config.CleanupInterval),
	}
}

type captureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (rc *ResponseCache) Cache() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if actor, ok := ActorFromContext(c); ok {
			key = actor.ID.String() + ":" + key
		}

		if v, found := rc.store.Get(key); found {
			cached := v.(cachedResponse)
			c.Data(cached.status, cached.contentType, cached.body)
			c.Abort()
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w

		c.Next()

		if c.Writer.Status() == http.StatusOK {
			rc.store.SetDefault(key, cachedResponse{
				status:      c.Writer.Status(),
				contentType: c.Writer.Header().Get("Content-Type"),
				body:        w.body.Bytes(),
			})
		}
	}
}
