package seed

import (
	"context"
	"testing"

	"brewpos/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProducts struct{ names []string }

func (s *stubProducts) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.names = append(s.names, p.Name)
	return &p, nil
}

type stubManagers struct{ enrolled []string }

func (s *stubManagers) Enroll(_ context.Context, username, fullName, _ string) (*domain.Manager, error) {
	s.enrolled = append(s.enrolled, username)
	return &domain.Manager{Username: username, FullName: fullName}, nil
}

func TestApplySeedsMenuAndManager(t *testing.T) {
	products, managers := &stubProducts{}, &stubManagers{}
	err := Apply(context.Background(), products, managers, Manager{Username: "BBADMIN", FullName: "Big Brew Admin", Password: "secret1"}, nil)
	require.NoError(t, err)
	assert.Len(t, products.names, len(Menu))
	assert.Equal(t, []string{"BBADMIN"}, managers.enrolled)
}

func TestApplySkipsManagerWithoutPassword(t *testing.T) {
	products, managers := &stubProducts{}, &stubManagers{}
	require.NoError(t, Apply(context.Background(), products, managers, Manager{Username: "BBADMIN"}, nil))
	assert.Empty(t, managers.enrolled)
}
