// Package state persists the last-applied federation resources as a JSON
// blob in a GCS bucket, keyed by (bucket, prefix). The blob is what plan and
// destroy consult, and generation preconditions keep two concurrent runs
// from silently overwriting each other.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"

	"github.com/gcp-wif/wifctl/pkg/federation"
)

const objectName = "federation.json"

// Snapshot records the resources of the last successful apply.
type Snapshot struct {
	ProjectId           string    `json:"project_id"`
	ProjectNumber       int64     `json:"project_number"`
	Repo                string    `json:"repo"`
	PoolName            string    `json:"pool_name"`
	ProviderName        string    `json:"provider_name"`
	ServiceAccountEmail string    `json:"service_account_email"`
	Role                string    `json:"role"`
	PrincipalSet        string    `json:"principal_set"`
	EnabledAPIs         []string  `json:"enabled_apis,omitempty"`
	AppliedAt           time.Time `json:"applied_at"`

	// generation of the object the snapshot was loaded from; zero for a
	// snapshot that has never been stored.
	generation int64
}

// NewSnapshot builds the snapshot describing a successful apply of the given
// configuration.
func NewSnapshot(cfg *federation.Config, outputs *federation.Outputs) *Snapshot {
	return &Snapshot{
		ProjectId:           cfg.ProjectId,
		ProjectNumber:       outputs.ProjectNumber,
		Repo:                cfg.Repo,
		PoolName:            outputs.WorkloadIdentityPool,
		ProviderName:        outputs.WorkloadIdentityProvider,
		ServiceAccountEmail: outputs.ServiceAccountEmail,
		Role:                cfg.Role,
		PrincipalSet:        outputs.PrincipalSet,
		EnabledAPIs:         federation.RequiredServices,
		AppliedAt:           time.Now().UTC(),
	}
}

// Store reads and writes snapshots at gs://{bucket}/{prefix}/federation.json.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewStore(client *storage.Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *Store) object() *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path.Join(s.prefix, objectName))
}

// Load returns the stored snapshot, or nil when none has been written yet.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	reader, err := s.object().NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read state from gs://%s/%s", s.bucket, s.prefix)
	}
	defer reader.Close()

	snapshot := &Snapshot{}
	if err := json.NewDecoder(reader).Decode(snapshot); err != nil {
		return nil, errors.Wrapf(err, "failed to decode state at gs://%s/%s", s.bucket, s.prefix)
	}
	snapshot.generation = reader.Attrs.Generation
	return snapshot, nil
}

// Save writes the snapshot, guarded by the generation observed at Load time.
// A snapshot that was never loaded may only create the object. A stale
// generation means another run applied in the meantime; the caller should
// re-run rather than overwrite.
func (s *Store) Save(ctx context.Context, snapshot *Snapshot) error {
	conditions := storage.Conditions{DoesNotExist: true}
	if snapshot.generation != 0 {
		conditions = storage.Conditions{GenerationMatch: snapshot.generation}
	}
	writer := s.object().If(conditions).NewWriter(ctx)
	writer.ContentType = "application/json"
	if err := json.NewEncoder(writer).Encode(snapshot); err != nil {
		writer.Close()
		return errors.Wrap(err, "failed to encode state")
	}
	if err := writer.Close(); err != nil {
		return errors.Wrapf(err,
			"failed to write state to gs://%s/%s (another run may have applied concurrently)",
			s.bucket, s.prefix)
	}
	return nil
}

// Update loads the current snapshot, derives the next one from it, and saves
// the result under the loaded generation. A nil result from build leaves the
// stored state untouched.
func (s *Store) Update(ctx context.Context, build func(prev *Snapshot) *Snapshot) (*Snapshot, error) {
	prev, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	next := build(prev)
	if next == nil {
		return prev, nil
	}
	if prev != nil {
		next.generation = prev.generation
	}
	if err := s.Save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Delete removes the state object, tolerating its absence.
func (s *Store) Delete(ctx context.Context) error {
	err := s.object().Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return errors.Wrapf(err, "failed to delete state at gs://%s/%s", s.bucket, s.prefix)
	}
	return nil
}

// Diff lists the fields on which two snapshots disagree. A nil previous
// snapshot means everything in next is new.
func Diff(prev, next *Snapshot) []string {
	if next == nil {
		return nil
	}
	if prev == nil {
		return []string{"no previous state recorded"}
	}
	var changes []string
	compare := func(field, before, after string) {
		if before != after {
			changes = append(changes, fmt.Sprintf("%s: %q -> %q", field, before, after))
		}
	}
	compare("project_id", prev.ProjectId, next.ProjectId)
	compare("repo", prev.Repo, next.Repo)
	compare("pool_name", prev.PoolName, next.PoolName)
	compare("provider_name", prev.ProviderName, next.ProviderName)
	compare("service_account_email", prev.ServiceAccountEmail, next.ServiceAccountEmail)
	compare("role", prev.Role, next.Role)
	compare("principal_set", prev.PrincipalSet, next.PrincipalSet)
	if prev.ProjectNumber != next.ProjectNumber {
		changes = append(changes, fmt.Sprintf("project_number: %d -> %d", prev.ProjectNumber, next.ProjectNumber))
	}
	return changes
}
