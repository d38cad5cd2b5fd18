package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/soochol/dbadmin/internal/config"
	"github.com/soochol/dbadmin/internal/dbadmin"
	"github.com/soochol/dbadmin/internal/repository"
	"github.com/soochol/dbadmin/internal/secrets"
)

// Sample dataset settings.
const (
	SampleDatasetName   = "Sample Dataset"
	SampleDatasetEngine = "h2"
	SampleDatasetDB     = "zip:sample-dataset.db"
)

// DatabaseService is the embedded data-access service. It stores database
// configurations with secret details sealed and returns them masked.
type DatabaseService struct {
	repo    repository.DatabaseRepository
	sealer  *secrets.Sealer
	engines config.EngineCatalog
	now     func() time.Time

	sampleMu sync.Mutex
}

func NewDatabaseService(repo repository.DatabaseRepository, sealer *secrets.Sealer, engines config.EngineCatalog) *DatabaseService {
	return &DatabaseService{repo: repo, sealer: sealer, engines: engines, now: time.Now}
}

// ListDatabases returns all databases ordered by name.
func (s *DatabaseService) ListDatabases(ctx context.Context) ([]dbadmin.DatabaseRecord, error) {
	recs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dbadmin.DatabaseRecord, len(recs))
	for i, r := range recs {
		out[i] = s.masked(r)
	}
	return out, nil
}

func (s *DatabaseService) GetDatabase(ctx context.Context, id int64) (*dbadmin.DatabaseRecord, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := s.masked(rec)
	return &out, nil
}

// CreateDatabase seals secrets and stores a new database.
func (s *DatabaseService) CreateDatabase(ctx context.Context, rec *dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error) {
	if rec.Persisted() {
		return nil, dbadmin.Validationf("new database must not carry an id")
	}
	c := rec.Clone()
	c.Name = strings.TrimSpace(c.Name)
	if err := checkRequired(c); err != nil {
		return nil, err
	}

	details, err := s.sealer.SealDetails(c.Details, s.engines.SecretFields(c.Engine))
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	c.Details = details
	c.Created = true
	c.CreatedAt = &now
	c.UpdatedAt = &now
	c.MetadataSyncedAt = nil

	if err := s.repo.Create(ctx, &c); err != nil {
		return nil, err
	}
	out := s.masked(&c)
	return &out, nil
}

// UpdateDatabase replaces name, engine and details. A masked secret keeps
// the stored value.
func (s *DatabaseService) UpdateDatabase(ctx context.Context, rec *dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error) {
	stored, err := s.repo.Get(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	c := rec.Clone()
	c.Name = strings.TrimSpace(c.Name)
	if err := checkRequired(c); err != nil {
		return nil, err
	}

	keys := s.engines.SecretFields(c.Engine)
	details, err := s.sealer.SealDetails(secrets.KeepMasked(c.Details, stored.Details, keys), keys)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	c.Details = details
	c.Created = true
	c.IsSample = stored.IsSample
	c.CreatedAt = stored.CreatedAt
	c.UpdatedAt = &now
	c.MetadataSyncedAt = stored.MetadataSyncedAt

	if err := s.repo.Update(ctx, &c); err != nil {
		return nil, err
	}
	out := s.masked(&c)
	return &out, nil
}

func (s *DatabaseService) DeleteDatabase(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// SyncMetadata records a metadata sync of the database. The stored
// credentials must be readable with the configured key.
func (s *DatabaseService) SyncMetadata(ctx context.Context, id int64) error {
	if _, err := s.Resolve(ctx, id); err != nil {
		return err
	}
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	rec.MetadataSyncedAt = &now
	return s.repo.Update(ctx, rec)
}

// AddSampleDataset creates the sample dataset, or returns it if it exists.
func (s *DatabaseService) AddSampleDataset(ctx context.Context) (*dbadmin.DatabaseRecord, error) {
	s.sampleMu.Lock()
	defer s.sampleMu.Unlock()

	recs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r.IsSample {
			out := s.masked(r)
			return &out, nil
		}
	}

	now := s.now().UTC()
	sample := &dbadmin.DatabaseRecord{
		Name:      SampleDatasetName,
		Engine:    SampleDatasetEngine,
		Details:   dbadmin.Details{"db": SampleDatasetDB},
		Created:   true,
		IsSample:  true,
		CreatedAt: &now,
		UpdatedAt: &now,
	}
	if err := s.repo.Create(ctx, sample); err != nil {
		return nil, err
	}
	out := s.masked(sample)
	return &out, nil
}

// Resolve returns a database with its secrets decrypted for runtime use.
func (s *DatabaseService) Resolve(ctx context.Context, id int64) (*dbadmin.DatabaseRecord, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	details, err := s.sealer.OpenDetails(rec.Details, s.engines.SecretFields(rec.Engine))
	if err != nil {
		return nil, fmt.Errorf("open secrets of database %d: %w", id, err)
	}
	rec.Details = details
	return rec, nil
}

func (s *DatabaseService) masked(rec *dbadmin.DatabaseRecord) dbadmin.DatabaseRecord {
	out := rec.Clone()
	out.Details = secrets.MaskDetails(rec.Details, s.engines.SecretFields(rec.Engine))
	return out
}

func checkRequired(rec dbadmin.DatabaseRecord) error {
	fields := make(map[string]string)
	if rec.Name == "" {
		fields["name"] = "name is required"
	}
	if rec.Engine == "" {
		fields["engine"] = "engine is required"
	}
	if len(fields) > 0 {
		return dbadmin.FieldErrors("invalid database", fields)
	}
	return nil
}
