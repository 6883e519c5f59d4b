package csratelimit

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// SweepSpec fréquence de purge des fenêtres expirées
const SweepSpec = "@every 1m"

// Budget nombre de requêtes autorisées par fenêtre pour une clé
type Budget struct {
	Max    int
	Window time.Duration
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter compteur à fenêtre fixe par clé, en mémoire et propre au processus.
// Les rafales en bordure de fenêtre sont acceptées.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
	cron    *cron.Cron
}

type Option func(*Limiter)

// WithClock remplace l'horloge, utile pour les tests
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow retourne true si la requête pour key passe dans le budget max/window
func (l *Limiter) Allow(key string, max int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		l.entries[key] = &entry{count: 1, resetAt: now.Add(window)}
		return true
	}

	if e.count >= max {
		return false
	}

	e.count++
	return true
}

// AllowBudget raccourci pour Allow avec un Budget
func (l *Limiter) AllowBudget(key string, b Budget) bool {
	return l.Allow(key, b.Max, b.Window)
}

// Sweep supprime les fenêtres expirées et retourne le nombre d'entrées retirées
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len nombre de clés suivies
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Start lance la purge périodique, Stop l'arrête
func (l *Limiter) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cron != nil {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(SweepSpec, func() {
		if removed := l.Sweep(); removed > 0 {
			log.Debug().Int("removed", removed).Msg("rate limiter sweep")
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	l.cron = c
	return nil
}

func (l *Limiter) Stop() {
	l.mu.Lock()
	c := l.cron
	l.cron = nil
	l.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
