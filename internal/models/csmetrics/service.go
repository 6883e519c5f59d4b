package csmetrics

import (
	"context"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"cantostudio/internal/models/cserrors"
	"cantostudio/internal/models/csevents"
	"cantostudio/internal/models/csschedules"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Snapshot indicateurs du tableau de bord admin
type Snapshot struct {
	SiteViews          int64  `json:"siteViews"`
	AvgSessionMinutes  string `json:"avgSessionMinutes"`
	TotalVisits        int64  `json:"totalVisits"`
	TotalCompleted     int64  `json:"totalCompleted"`
	AbandonmentRate    string `json:"abandonmentRate"`
	TotalLeads         int64  `json:"totalLeads"`
	PendingSchedules   int64  `json:"pendingSchedules"`
	ConfirmedSchedules int64  `json:"confirmedSchedules"`
	RejectedSchedules  int64  `json:"rejectedSchedules"`
	ClicksAgendar      int64  `json:"clicksAgendar"`
	ClicksSobre        int64  `json:"clicksSobre"`
	ClicksMetodologia  int64  `json:"clicksMetodologia"`
	ClicksDepoimentos  int64  `json:"clicksDepoimentos"`
}

func emptySnapshot() *Snapshot {
	return &Snapshot{AvgSessionMinutes: "0", AbandonmentRate: "0%"}
}

// Range période de calcul. Sans bornes le calcul porte sur tout l'historique.
type Range struct {
	Start   time.Time
	End     time.Time
	Bounded bool
}

// ParseRange les deux dates (AAAA-MM-DD) sont nécessaires pour filtrer,
// la fin est incluse jusqu'à 23:59:59.999 dans loc
func ParseRange(startDate, endDate string, loc *time.Location) (Range, error) {
	startDate = strings.TrimSpace(startDate)
	endDate = strings.TrimSpace(endDate)
	if startDate == "" || endDate == "" {
		return Range{}, nil
	}
	if loc == nil {
		loc = time.Local
	}

	start, err := time.ParseInLocation(time.DateOnly, startDate, loc)
	if err != nil {
		return Range{}, cserrors.Validation("Data inicial inválida. Use o formato AAAA-MM-DD.")
	}
	end, err := time.ParseInLocation(time.DateOnly, endDate, loc)
	if err != nil {
		return Range{}, cserrors.Validation("Data final inválida. Use o formato AAAA-MM-DD.")
	}

	return Range{
		Start:   start,
		End:     end.AddDate(0, 0, 1).Add(-time.Millisecond),
		Bounded: true,
	}, nil
}

// Empty vrai quand la date de début est après la date de fin
func (r Range) Empty() bool {
	return r.Bounded && r.Start.After(r.End)
}

// Scope filtre sur created_at, utilisable avec db.Scopes
func (r Range) Scope(db *gorm.DB) *gorm.DB {
	if !r.Bounded {
		return db
	}
	return db.Where("created_at >= ? AND created_at <= ?", r.Start.UTC(), r.End.UTC())
}

// Realtime compteurs du jour en redis, optionnels
type Realtime interface {
	Today(ctx context.Context, day string) (map[string]int64, error)
}

type Service struct {
	db       *gorm.DB
	realtime Realtime
	loc      *time.Location
	now      func() time.Time
}

func NewService(db *gorm.DB, realtime Realtime, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		db:       db,
		realtime: realtime,
		loc:      loc,
		now:      time.Now,
	}
}

// Location fuseau utilisé pour interpréter les dates des requêtes
func (s *Service) Location() *time.Location {
	return s.loc
}

var countedEventTypes = []csevents.EventType{
	csevents.SiteView,
	csevents.StartedScheduling,
	csevents.CompletedScheduling,
	csevents.ClickAgendar,
	csevents.ClickSobre,
	csevents.ClickMetodologia,
	csevents.ClickDepoimentos,
}

// Compute calcule les indicateurs sur la période, lecture seule
func (s *Service) Compute(ctx context.Context, r Range) (*Snapshot, error) {
	if r.Empty() {
		return emptySnapshot(), nil
	}

	db := s.db.WithContext(ctx)
	snap := emptySnapshot()

	// 1. Événements par type
	byType, err := s.countEvents(db, r)
	if err != nil {
		return nil, err
	}
	snap.SiteViews = byType[csevents.SiteView]
	snap.TotalVisits = byType[csevents.StartedScheduling]
	snap.TotalCompleted = byType[csevents.CompletedScheduling]
	snap.ClicksAgendar = byType[csevents.ClickAgendar]
	snap.ClicksSobre = byType[csevents.ClickSobre]
	snap.ClicksMetodologia = byType[csevents.ClickMetodologia]
	snap.ClicksDepoimentos = byType[csevents.ClickDepoimentos]

	// 2. Durée moyenne des visites
	avg, err := s.averageSessionMinutes(db, r)
	if err != nil {
		return nil, err
	}
	snap.AvgSessionMinutes = avg

	// 3. Leads créés sur la période
	if err := db.Model(&csschedules.Lead{}).Scopes(r.Scope).Count(&snap.TotalLeads).Error; err != nil {
		return nil, cserrors.Persistence(err, "error counting leads")
	}

	// 4. Réservations par statut, filtrées sur leur date de création et non sur la date du cours
	byStatus, err := s.countSchedules(db, r)
	if err != nil {
		return nil, err
	}
	snap.PendingSchedules = byStatus[csschedules.StatusPending]
	snap.ConfirmedSchedules = byStatus[csschedules.StatusConfirmed]
	snap.RejectedSchedules = byStatus[csschedules.StatusRejected]

	snap.AbandonmentRate = AbandonmentRate(snap.SiteViews, snap.TotalCompleted)
	return snap, nil
}

func (s *Service) countEvents(db *gorm.DB, r Range) (map[csevents.EventType]int64, error) {
	type typeCount struct {
		EventType csevents.EventType
		Count     int64
	}
	var rows []typeCount
	err := db.Model(&csevents.EventLog{}).
		Scopes(r.Scope).
		Select("event_type, COUNT(*) AS count").
		Where("event_type IN ?", countedEventTypes).
		Group("event_type").
		Scan(&rows).Error
	if err != nil {
		return nil, cserrors.Persistence(err, "error counting events")
	}

	out := make(map[csevents.EventType]int64, len(rows))
	for _, row := range rows {
		out[row.EventType] = row.Count
	}
	return out, nil
}

func (s *Service) averageSessionMinutes(db *gorm.DB, r Range) (string, error) {
	var metadata []datatypes.JSONMap
	err := db.Model(&csevents.EventLog{}).
		Scopes(r.Scope).
		Where("event_type = ?", csevents.SessionDuration).
		Pluck("metadata", &metadata).Error
	if err != nil {
		return "", cserrors.Persistence(err, "error reading session durations")
	}

	var total float64
	var valid int
	for _, m := range metadata {
		p, ok := csevents.DecodePayload(csevents.SessionDuration, m).(csevents.SessionDurationPayload)
		if !ok || !p.Valid {
			continue
		}
		total += p.Minutes
		valid++
	}
	return AverageMinutes(total, valid), nil
}

func (s *Service) countSchedules(db *gorm.DB, r Range) (map[csschedules.Status]int64, error) {
	type statusCount struct {
		Status csschedules.Status
		Count  int64
	}
	var rows []statusCount
	err := db.Model(&csschedules.Schedule{}).
		Scopes(r.Scope).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, cserrors.Persistence(err, "error counting schedules")
	}

	out := make(map[csschedules.Status]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// AverageMinutes moyenne arrondie à une décimale, "0" sans valeur
func AverageMinutes(total float64, n int) string {
	if n == 0 {
		return "0"
	}
	return formatTenths(total / float64(n))
}

// AbandonmentRate ((vues - terminés) / vues) * 100 avec une décimale, "0%" sans vue
func AbandonmentRate(siteViews, completed int64) string {
	if siteViews == 0 {
		return "0%"
	}
	return formatTenths(float64(siteViews-completed)/float64(siteViews)*100) + "%"
}

// formatTenths une décimale, égalité arrondie vers le haut en valeur absolue
// sur la valeur binaire exacte: 6.25 -> "6.3", 2.25 -> "2.3", -0.25 -> "-0.3"
func formatTenths(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return strconv.FormatFloat(x, 'f', 1, 64)
	}
	sign := ""
	if x < 0 {
		sign = "-"
		x = -x
	}

	r := new(big.Rat).SetFloat64(x)
	r.Mul(r, big.NewRat(10, 1))
	r.Add(r, big.NewRat(1, 2))
	tenths := new(big.Int).Quo(r.Num(), r.Denom()).String()
	if len(tenths) < 2 {
		tenths = "0" + tenths
	}
	return sign + tenths[:len(tenths)-1] + "." + tenths[len(tenths)-1:]
}

// Realtime compteurs du jour (fuseau du studio), map vide sans redis
func (s *Service) Realtime(ctx context.Context) (map[string]int64, error) {
	if s.realtime == nil {
		return map[string]int64{}, nil
	}
	day := s.now().In(s.loc).Format(time.DateOnly)
	counts, err := s.realtime.Today(ctx, day)
	if err != nil {
		return nil, cserrors.Persistence(err, "error reading realtime counters")
	}
	return counts, nil
}
