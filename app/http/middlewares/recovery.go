package middlewares

import (
	"errors"
	"net"
	"net/http/httputil"
	"os"
	"strings"
	"time"

	"riciti/pkg/logger"
	"riciti/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a panic into a logged 500
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				httpRequest, _ := httputil.DumpRequest(c.Request, false)

				// a client that hung up is not worth a stack trace
				if e, ok := err.(error); ok && brokenPipe(e) {
					logger.Warn(c.Request.URL.Path,
						zap.Time("time", time.Now()),
						zap.Any("error", err),
					)
					c.Error(e) // nolint: errcheck
					c.Abort()
					return
				}

				logger.Error("recovery from panic",
					zap.Time("time", time.Now()),
					zap.Any("error", err),
					zap.String("request", redactQuery(string(httpRequest))),
					zap.Stack("stacktrace"),
				)
				response.Abort500(c)
			}
		}()
		c.Next()
	}
}

func brokenPipe(err error) bool {
	var ne *net.OpError
	if !errors.As(err, &ne) {
		return false
	}
	var se *os.SyscallError
	if errors.As(ne, &se) {
		msg := strings.ToLower(se.Error())
		return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
	}
	return false
}

// redactQuery drops the query string from the request line
func redactQuery(dump string) string {
	line, rest, found := strings.Cut(dump, "\n")
	if i := strings.Index(line, "?"); i >= 0 {
		if j := strings.LastIndex(line, " "); j > i {
			line = line[:i] + line[j:]
		}
	}
	if !found {
		return line
	}
	return line + "\n" + rest
}
