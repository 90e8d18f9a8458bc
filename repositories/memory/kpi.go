// Package memorydb is an in-process stand-in for the MongoDB repositories,
// used by tests.
package memorydb

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"kpitracker/models"
	repository "kpitracker/repositories"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type KPIRepository struct {
	sync.RWMutex
	table map[primitive.ObjectID]*models.KPI

	// BeforeSave runs under the lock before a save is applied; a non-nil
	// error is returned from Save instead.
	BeforeSave func(stored, incoming *models.KPI) error
	Saves      int
}

var _ repository.KPIRepository = (*KPIRepository)(nil) // interface compliance check

func NewKPIRepository() *KPIRepository {
	return &KPIRepository{table: make(map[primitive.ObjectID]*models.KPI)}
}

func clone(k *models.KPI) *models.KPI {
	c := *k
	c.Comments = append([]models.Comment{}, k.Comments...)
	c.Evidence = append([]models.Evidence{}, k.Evidence...)
	c.HistoricalData = append([]models.Snapshot{}, k.HistoricalData...)
	return &c
}

// Put stores kpi as is, assigning an ID when missing.
func (repo *KPIRepository) Put(kpi *models.KPI) *models.KPI {
	repo.Lock()
	defer repo.Unlock()

	if kpi.ID.IsZero() {
		kpi.ID = primitive.NewObjectID()
	}
	repo.table[kpi.ID] = clone(kpi)
	return kpi
}

// Get returns a copy of the stored KPI.
func (repo *KPIRepository) Get(id primitive.ObjectID) (*models.KPI, bool) {
	repo.RLock()
	defer repo.RUnlock()

	k, ok := repo.table[id]
	if !ok {
		return nil, false
	}
	return clone(k), true
}

func (repo *KPIRepository) Create(ctx context.Context, kpi *models.KPI) error {
	kpi.ID = primitive.NewObjectID()
	repo.Put(kpi)
	return nil
}

func (repo *KPIRepository) find(match func(*models.KPI) bool) (*models.KPI, error) {
	repo.RLock()
	defer repo.RUnlock()

	for _, k := range repo.table {
		if match(k) {
			return clone(k), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (repo *KPIRepository) FindAssigned(ctx context.Context, id, staffID primitive.ObjectID, organization string) (*models.KPI, error) {
	return repo.find(func(k *models.KPI) bool {
		return k.ID == id && k.Staff == staffID && k.Organization == organization
	})
}

func (repo *KPIRepository) FindManaged(ctx context.Context, id, managerID primitive.ObjectID, organization string) (*models.KPI, error) {
	return repo.find(func(k *models.KPI) bool {
		return k.ID == id && k.Manager == managerID && k.Organization == organization
	})
}

func (repo *KPIRepository) list(match func(*models.KPI) bool, limit int64) []models.KPI {
	repo.RLock()
	defer repo.RUnlock()

	kpis := []models.KPI{}
	for _, k := range repo.table {
		if match(k) {
			kpis = append(kpis, *clone(k))
		}
	}
	sort.Slice(kpis, func(i, j int) bool { return kpis[i].CreatedAt.After(kpis[j].CreatedAt) })
	if limit > 0 && int64(len(kpis)) > limit {
		kpis = kpis[:limit]
	}
	return kpis
}

func (repo *KPIRepository) ListAssigned(ctx context.Context, staffID primitive.ObjectID, organization string) ([]models.KPI, error) {
	return repo.list(func(k *models.KPI) bool {
		return k.Staff == staffID && k.Organization == organization
	}, 0), nil
}

func (repo *KPIRepository) ListManaged(ctx context.Context, managerID primitive.ObjectID, organization string, limit int64) ([]models.KPI, error) {
	return repo.list(func(k *models.KPI) bool {
		return k.Manager == managerID && k.Organization == organization
	}, limit), nil
}

func (repo *KPIRepository) CountManaged(ctx context.Context, managerID primitive.ObjectID, organization string, status models.Status, now time.Time) (int64, error) {
	if status != "" && !status.Valid() {
		return 0, errors.Errorf("unknown KPI status %q", status)
	}
	kpis := repo.list(func(k *models.KPI) bool {
		return k.Manager == managerID && k.Organization == organization
	}, 0)

	var n int64
	for i := range kpis {
		if status == "" || kpis[i].UpdateStatus(now) == status {
			n++
		}
	}
	return n, nil
}

func (repo *KPIRepository) Save(ctx context.Context, kpi *models.KPI) error {
	repo.Lock()
	defer repo.Unlock()

	stored, ok := repo.table[kpi.ID]
	if repo.BeforeSave != nil {
		if err := repo.BeforeSave(stored, kpi); err != nil {
			return err
		}
	}
	if !ok || stored.Version != kpi.Version {
		return repository.ErrVersionConflict
	}

	kpi.Version++
	repo.table[kpi.ID] = clone(kpi)
	repo.Saves++
	return nil
}

func (repo *KPIRepository) Delete(ctx context.Context, id, managerID primitive.ObjectID, organization string) (*models.KPI, error) {
	repo.Lock()
	defer repo.Unlock()

	k, ok := repo.table[id]
	if !ok || k.Manager != managerID || k.Organization != organization {
		return nil, repository.ErrNotFound
	}
	delete(repo.table, id)
	return k, nil
}

func (repo *KPIRepository) PerformanceStats(ctx context.Context, managerID primitive.ObjectID, organization string, now time.Time) ([]models.PerformanceStat, error) {
	kpis := repo.list(func(k *models.KPI) bool {
		return k.Manager == managerID && k.Organization == organization
	}, 0)

	groups := map[models.Status]*models.PerformanceStat{}
	for _, k := range kpis {
		status := k.UpdateStatus(now)
		g, ok := groups[status]
		if !ok {
			g = &models.PerformanceStat{Status: status}
			groups[status] = g
		}
		// running sums, turned into averages below
		g.Count++
		g.AvgProgress += float64(k.Progress)
		g.TotalEvidence += int64(len(k.Evidence))
		g.AvgDaysUntilDue += k.EndDate.Sub(now).Hours() / 24
	}

	stats := make([]models.PerformanceStat, 0, len(groups))
	for _, g := range groups {
		g.AvgProgress /= float64(g.Count)
		g.AvgDaysUntilDue /= float64(g.Count)
		stats = append(stats, *g)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Status < stats[j].Status
	})
	return stats, nil
}

func (repo *KPIRepository) StaffPerformance(ctx context.Context, managerID primitive.ObjectID, organization string) ([]models.StaffPerformance, error) {
	kpis := repo.list(func(k *models.KPI) bool {
		return k.Manager == managerID && k.Organization == organization
	}, 0)

	groups := map[primitive.ObjectID]*models.StaffPerformance{}
	sums := map[primitive.ObjectID]float64{}
	for _, k := range kpis {
		g, ok := groups[k.Staff]
		if !ok {
			g = &models.StaffPerformance{Staff: k.Staff}
			groups[k.Staff] = g
		}
		g.TotalKPIs++
		if k.Progress >= 100 {
			g.CompletedKPIs++
		}
		sums[k.Staff] += float64(k.Progress)
	}

	perf := make([]models.StaffPerformance, 0, len(groups))
	for staff, g := range groups {
		g.AvgProgress = int(math.Round(sums[staff] / float64(g.TotalKPIs)))
		perf = append(perf, *g)
	}
	sort.Slice(perf, func(i, j int) bool { return perf[i].Staff.Hex() < perf[j].Staff.Hex() })
	return perf, nil
}
