package csredis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cantostudio/internal/models/csconfig"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix         = "cantostudio:"
	captchaExpiration = 5 * time.Minute
	// les compteurs du jour restent lisibles le lendemain pour le tableau de bord
	counterTTL = 48 * time.Hour
)

// NewClient retourne nil quand aucune adresse redis n'est configurée
func NewClient(conf csconfig.RedisConfig) *redis.Client {
	if conf.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:        conf.Addr,
		DB:          conf.Db,
		DialTimeout: 3 * time.Second,
	})
}

// CaptchaStore store base64Captcha partagé entre les instances
type CaptchaStore struct {
	client     *redis.Client
	expiration time.Duration
}

func NewCaptchaStore(client *redis.Client) *CaptchaStore {
	return &CaptchaStore{
		client:     client,
		expiration: captchaExpiration,
	}
}

func captchaKey(id string) string {
	return keyPrefix + "captcha:" + id
}

func (r *CaptchaStore) Set(id string, value string) error {
	ctx := context.Background()
	return r.client.Set(ctx, captchaKey(id), value, r.expiration).Err()
}

func (r *CaptchaStore) Get(id string, clear bool) string {
	ctx := context.Background()
	key := captchaKey(id)
	if clear {
		val, _ := r.client.GetDel(ctx, key).Result()
		return val
	}
	val, _ := r.client.Get(ctx, key).Result()
	return val
}

func (r *CaptchaStore) Verify(id, answer string, clear bool) bool {
	v := r.Get(id, clear)
	return v != "" && v == answer
}

// DailyCounters compteurs d'événements par jour, un hash par jour et un champ par type
type DailyCounters struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDailyCounters(client *redis.Client) *DailyCounters {
	return &DailyCounters{
		client: client,
		ttl:    counterTTL,
	}
}

func dailyKey(day string) string {
	return keyPrefix + "events:" + day
}

func (d *DailyCounters) Incr(ctx context.Context, day string, eventType string) error {
	key := dailyKey(day)
	pipe := d.client.TxPipeline()
	pipe.HIncrBy(ctx, key, eventType, 1)
	pipe.Expire(ctx, key, d.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (d *DailyCounters) Today(ctx context.Context, day string) (map[string]int64, error) {
	raw, err := d.client.HGetAll(ctx, dailyKey(day)).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	return parseCounts(raw)
}

func parseCounts(raw map[string]string) (map[string]int64, error) {
	out := make(map[string]int64, len(raw))
	for field, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("compteur %s invalide: %w", field, err)
		}
		out[field] = n
	}
	return out, nil
}
