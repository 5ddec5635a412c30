package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/storage"
)

type fakeStore struct {
	faces []storage.FaceMatch
	body  *storage.BodyCacheMatch

	searchCalls int
	bindCalls   int
	bindPerson  int64
	bindBody    []float32
	bindAt      time.Time
	bodyCalls   int
	bodyCutoff  time.Time
}

func (f *fakeStore) SearchFaces(ctx context.Context, embedding []float32, threshold float64, limit int) ([]storage.FaceMatch, error) {
	f.searchCalls++
	return f.faces, nil
}

func (f *fakeStore) BindBodyToPerson(ctx context.Context, personID int64, body []float32, at time.Time) error {
	f.bindCalls++
	f.bindPerson = personID
	f.bindBody = body
	f.bindAt = at
	return nil
}

func (f *fakeStore) MatchBodyCache(ctx context.Context, body []float32, cutoff time.Time, hard, soft float64, at time.Time) (*storage.BodyCacheMatch, error) {
	f.bodyCalls++
	f.bodyCutoff = cutoff
	return f.body, nil
}

func testConfig() config.IdentityConfig {
	return config.IdentityConfig{
		FaceThreshold:     0.65,
		BodyThreshold:     0.60,
		SoftBodyThreshold: 0.55,
		BodyCacheWindow:   48 * time.Hour,
	}
}

func TestIdentifyFaceMatchBindsBody(t *testing.T) {
	store := &fakeStore{
		faces: []storage.FaceMatch{{PersonID: 7, Name: "dad", Role: models.RoleOwner, Score: 0.82}},
	}
	a := NewArbiter(store, testConfig())

	at := time.Date(2026, 8, 20, 18, 30, 0, 0, time.UTC)
	body := []float32{0.1, 0.2, 0.3}
	res, err := a.Identify(context.Background(), []float32{1, 0}, body, at)
	require.NoError(t, err)

	assert.Equal(t, int64(7), res.PersonID)
	assert.Equal(t, "dad", res.PersonName)
	assert.Equal(t, models.LabelFamily, res.Label)
	assert.Equal(t, models.MethodFace, res.Method)
	assert.Equal(t, 1, store.bindCalls)
	assert.Equal(t, int64(7), store.bindPerson)
	assert.Equal(t, body, store.bindBody)
	assert.Equal(t, at, store.bindAt)
	assert.Zero(t, store.bodyCalls, "face hit must short-circuit the body path")
}

func TestIdentifyFaceMatchWithoutBodySkipsBind(t *testing.T) {
	store := &fakeStore{
		faces: []storage.FaceMatch{{PersonID: 2, Name: "mom", Role: models.RoleOwner, Score: 0.7}},
	}
	a := NewArbiter(store, testConfig())

	res, err := a.Identify(context.Background(), []float32{1, 0}, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.MethodFace, res.Method)
	assert.Zero(t, store.bindCalls)
}

func TestIdentifyBodyCacheHit(t *testing.T) {
	store := &fakeStore{
		body: &storage.BodyCacheMatch{PersonID: 3, Name: "mom", Score: 0.71, Refreshed: true},
	}
	a := NewArbiter(store, testConfig())

	at := time.Date(2026, 8, 20, 18, 30, 0, 0, time.UTC)
	res, err := a.Identify(context.Background(), nil, []float32{0.5, 0.5}, at)
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.PersonID)
	assert.Equal(t, models.LabelFamily, res.Label)
	assert.Equal(t, models.MethodBody, res.Method)
	assert.Zero(t, store.searchCalls, "no face vector, face search must not run")
	assert.Equal(t, at.Add(-48*time.Hour), store.bodyCutoff)
}

func TestIdentifySoftBodyHit(t *testing.T) {
	store := &fakeStore{
		body: &storage.BodyCacheMatch{PersonID: 3, Name: "mom", Score: 0.57, Refreshed: false},
	}
	a := NewArbiter(store, testConfig())

	res, err := a.Identify(context.Background(), nil, []float32{0.5, 0.5}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, models.LabelSuspectedFamily, res.Label)
	assert.Equal(t, models.MethodSoftBody, res.Method)
	assert.Equal(t, int64(3), res.PersonID)
}

func TestIdentifyMissIsStranger(t *testing.T) {
	store := &fakeStore{}
	a := NewArbiter(store, testConfig())

	res, err := a.Identify(context.Background(), []float32{1, 0}, []float32{0.5, 0.5}, time.Now())
	require.NoError(t, err)

	assert.Zero(t, res.PersonID)
	assert.Equal(t, models.LabelStranger, res.Label)
	assert.Equal(t, models.MethodNew, res.Method)
	assert.Equal(t, 1, store.searchCalls)
	assert.Equal(t, 1, store.bodyCalls)
}

func TestIdentifyVisitorRoleLabel(t *testing.T) {
	store := &fakeStore{
		faces: []storage.FaceMatch{{PersonID: 9, Name: "courier", Role: models.RoleVisitor, Score: 0.69}},
	}
	a := NewArbiter(store, testConfig())

	res, err := a.Identify(context.Background(), []float32{1, 0}, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.LabelVisitor, res.Label)
}
