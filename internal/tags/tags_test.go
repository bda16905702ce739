package tags_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackly/internal/events"
	"trackly/internal/tags"
	"trackly/internal/testsupport"
)

func ptr[T any](v T) *T { return &v }

func newService(t *testing.T) *tags.Service {
	t.Helper()
	return tags.NewService(testsupport.SetupTestDB(t), testsupport.GetLogger())
}

func TestCreateAppliesDefaults(t *testing.T) {
	svc := newService(t)

	tag, err := svc.Create(context.Background(), tags.Input{Name: ptr("  signup  ")})
	require.NoError(t, err)

	assert.NotZero(t, tag.ID)
	assert.Equal(t, "signup", tag.Name)
	assert.Equal(t, tags.DefaultTagType, tag.TagType)
	assert.Equal(t, events.PageViewEventName, tag.TriggerType)
	assert.True(t, tag.IsActive)
	assert.Empty(t, tag.ConfigMap())
}

func TestCreateValidation(t *testing.T) {
	svc := newService(t)

	_, err := svc.Create(context.Background(), tags.Input{})
	assert.ErrorIs(t, err, events.ErrValidation)

	_, err = svc.Create(context.Background(), tags.Input{Name: ptr("   ")})
	assert.ErrorIs(t, err, events.ErrValidation)
}

func TestCreateDuplicateName(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, tags.Input{Name: ptr("checkout")})
	require.NoError(t, err)

	_, err = svc.Create(ctx, tags.Input{Name: ptr("checkout")})
	assert.ErrorIs(t, err, events.ErrConstraintViolation)
}

func TestUpdate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, tags.Input{Name: ptr("a")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, tags.Input{Name: ptr("b")})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, a.ID, tags.Input{
		Description: ptr("first tag"),
		Config:      map[string]any{"selector": "#buy"},
	})
	require.NoError(t, err)
	assert.Equal(t, "first tag", updated.Description)
	assert.Equal(t, "#buy", updated.ConfigMap()["selector"])

	_, err = svc.Update(ctx, a.ID, tags.Input{Name: ptr("b")})
	assert.ErrorIs(t, err, events.ErrConstraintViolation)

	_, err = svc.Update(ctx, 999, tags.Input{Name: ptr("c")})
	assert.ErrorIs(t, err, events.ErrNotFound)
}

func TestDeleteSoftAndHard(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	soft, err := svc.Create(ctx, tags.Input{Name: ptr("soft")})
	require.NoError(t, err)
	hard, err := svc.Create(ctx, tags.Input{Name: ptr("hard")})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, soft.ID, false))
	require.NoError(t, svc.Delete(ctx, hard.ID, true))

	active, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "soft", all[0].Name)
	assert.False(t, all[0].IsActive)

	_, err = svc.Get(ctx, hard.ID)
	assert.ErrorIs(t, err, events.ErrNotFound)
}

func TestTagJSONRendersConfigObject(t *testing.T) {
	svc := newService(t)

	tag, err := svc.Create(context.Background(), tags.Input{
		Name:   ptr("cfg"),
		Config: map[string]any{"path": "/pricing"},
	})
	require.NoError(t, err)

	b, err := tag.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(b), `"config":{"path":"/pricing"}`)
	assert.Contains(t, string(b), `"type":"custom"`)
}
