package csmiddleware

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const adminSessionKey = "user_id"

// AdminRequired les routes /api/admin répondent 401 sans session admin
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized Access"})
			return
		}
		c.Set("authenticated", true)
		c.Next()
	}
}

func IsAdmin(c *gin.Context) bool {
	return sessions.Default(c).Get(adminSessionKey) != nil
}

func Login(c *gin.Context) error {
	session := sessions.Default(c)
	session.Set(adminSessionKey, "admin")
	return session.Save()
}

func Logout(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	return session.Save()
}
