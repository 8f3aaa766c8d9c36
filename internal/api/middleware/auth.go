package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/d60-Lab/void-feed/pkg/logger"
)

const userIDKey = "user_id"

// Auth 解析 Bearer JWT，sub 作为当前用户 ID 写入上下文。
// 缺失或无效的 token 不拦截请求，只视为未登录，由业务层决定是否拒绝。
func Auth(secret, issuer string) gin.HandlerFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || secret == "" {
			c.Next()
			return
		}
		var claims jwt.RegisteredClaims
		_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil {
			if !errors.Is(err, jwt.ErrTokenExpired) {
				logger.Debug("reject bearer token", zap.Error(err))
			}
			c.Next()
			return
		}
		if claims.Subject != "" {
			c.Set(userIDKey, claims.Subject)
		}
		c.Next()
	}
}

// UserID 当前登录用户；未登录返回空串
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// IssueToken 签发 HS256 token，供种子工具和测试使用
func IssueToken(secret, issuer, userID string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = userID
	if issuer != "" {
		claims.Issuer = issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
