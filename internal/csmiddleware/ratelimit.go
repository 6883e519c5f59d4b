package csmiddleware

import (
	"time"

	"cantostudio/internal/models/csconfig"
	"cantostudio/internal/models/cserrors"
	"cantostudio/internal/models/csratelimit"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// ClientIP IP du client selon gin: X-Forwarded-For et X-Real-IP ne sont lus que si
// la connexion vient d'un proxy de confiance (SetTrustedProxies, TrustedPlatform)
func ClientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return ip
}

// RateLimit budget indépendant par route: la clé est "name:ip"
func RateLimit(l *csratelimit.Limiter, name string, budget csratelimit.Budget) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := ClientIP(c)
		if !l.AllowBudget(name+":"+ip, budget) {
			log.Warn().Str("route", name).Str("ip", ip).Msg("rate limit atteint")
			cserrors.Respond(c, cserrors.RateLimited())
			return
		}
		c.Next()
	}
}

// Budgets budgets des routes publiques, lus depuis la configuration
type Budgets struct {
	Track       csratelimit.Budget
	Schedule    csratelimit.Budget
	DataRequest csratelimit.Budget
}

func NewBudgets(conf csconfig.RateLimitConfig) Budgets {
	window := conf.WindowDuration()
	return Budgets{
		Track:       csratelimit.Budget{Max: conf.Track, Window: window},
		Schedule:    csratelimit.Budget{Max: conf.Schedule, Window: window},
		DataRequest: csratelimit.Budget{Max: conf.DataRequest, Window: window},
	}
}

// NewLoginLimiter protège la connexion admin, partagé via redis si disponible
func NewLoginLimiter(conf csconfig.RateLimitConfig, client *redis.Client) gin.HandlerFunc {
	rate := limiter.Rate{
		Period: conf.WindowDuration(),
		Limit:  int64(conf.Login),
	}

	var store limiter.Store
	if client != nil {
		var err error
		store, err = sredis.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix:          "cantostudio:limiter",
			CleanUpInterval: time.Minute,
		})
		if err != nil {
			log.Warn().Err(err).Msg("store redis du limiteur indisponible, store mémoire utilisé")
			store = nil
		}
	}
	if store == nil {
		store = memory.NewStore()
	}

	instance := limiter.New(store, rate)
	return ginlimiter.NewMiddleware(instance,
		ginlimiter.WithKeyGetter(func(c *gin.Context) string {
			return "login:" + ClientIP(c)
		}),
		ginlimiter.WithLimitReachedHandler(func(c *gin.Context) {
			cserrors.Respond(c, cserrors.RateLimited())
		}),
	)
}
