package middlewares

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type bufferedWriter struct {
	gin.ResponseWriter
	body   bytes.Buffer
	status int
}

func (w *bufferedWriter) WriteHeader(code int) {
	if code > 0 {
		w.status = code
	}
}

func (w *bufferedWriter) WriteHeaderNow() {}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

func (w *bufferedWriter) Status() int {
	return w.status
}

func (w *bufferedWriter) Size() int {
	return w.body.Len()
}

func (w *bufferedWriter) Written() bool {
	return false
}

// ETag hashes successful GET responses and answers 304 when the client
// already holds the same representation.
func ETag() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		orig := c.Writer
		bw := &bufferedWriter{ResponseWriter: orig, status: http.StatusOK}
		c.Writer = bw
		c.Next()
		c.Writer = orig

		body := bw.body.Bytes()
		if bw.status == http.StatusOK && len(body) > 0 {
			sum := sha256.Sum256(body)
			tag := `"` + base64.StdEncoding.EncodeToString(sum[:]) + `"`
			orig.Header().Set("ETag", tag)
			if etagMatches(c.GetHeader("If-None-Match"), tag) {
				orig.Header().Del("Content-Type")
				orig.WriteHeader(http.StatusNotModified)
				orig.WriteHeaderNow()
				return
			}
		}

		orig.WriteHeader(bw.status)
		if len(body) == 0 {
			orig.WriteHeaderNow()
			return
		}
		_, _ = orig.Write(body)
	}
}

func etagMatches(header, tag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == tag {
			return true
		}
	}
	return false
}
