package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildRepository_CreateAndGetByID(t *testing.T) {
	database := newTestDB(t)
	repo := NewBuildRepository(database)

	b := &Build{BuildType: BuildTypeBuild, Version: "1.0.0"}
	require.NoError(t, repo.Create(b))
	require.NotZero(t, b.ID)

	got, err := repo.GetByID(b.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, BuildStateNew, got.BuildState)
	require.Equal(t, "1.0.0", got.Version)
}

func TestBuildRepository_GetByID_Missing(t *testing.T) {
	database := newTestDB(t)
	repo := NewBuildRepository(database)

	got, err := repo.GetByID(999)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestBuildRepository_ChildrenSiblingsRoot(t *testing.T) {
	database := newTestDB(t)
	repo := NewBuildRepository(database)

	root := &Build{BuildType: BuildTypeBuild}
	require.NoError(t, repo.Create(root))

	source := &Build{BuildType: BuildTypeSource, ParentID: &root.ID}
	require.NoError(t, repo.Create(source))

	deb1 := &Build{BuildType: BuildTypeDeb, ParentID: &source.ID, Architecture: "amd64"}
	require.NoError(t, repo.Create(deb1))
	deb2 := &Build{BuildType: BuildTypeDeb, ParentID: &source.ID, Architecture: "arm64"}
	require.NoError(t, repo.Create(deb2))

	children, err := repo.Children(source.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)

	siblings, err := repo.Siblings(deb1)
	require.NoError(t, err)
	require.Len(t, siblings, 2)

	gotRoot, err := repo.Root(deb1)
	require.NoError(t, err)
	require.Equal(t, root.ID, gotRoot.ID)

	gotRootOfRoot, err := repo.Root(root)
	require.NoError(t, err)
	require.Equal(t, root.ID, gotRootOfRoot.ID)
}

func TestBuildRepository_ListByStateAndType(t *testing.T) {
	database := newTestDB(t)
	repo := NewBuildRepository(database)

	deb := &Build{BuildType: BuildTypeDeb, BuildState: BuildStateNeedsBuild, Architecture: "amd64"}
	require.NoError(t, repo.Create(deb))
	source := &Build{BuildType: BuildTypeSource, BuildState: BuildStateNeedsBuild}
	require.NoError(t, repo.Create(source))

	debs, err := repo.ListByTypeAndState(BuildTypeDeb, BuildStateNeedsBuild)
	require.NoError(t, err)
	require.Len(t, debs, 1)
	require.Equal(t, deb.ID, debs[0].ID)

	nonBuild, err := repo.ListNonBuildTypeInState(BuildStateNeedsBuild)
	require.NoError(t, err)
	require.Len(t, nonBuild, 2)
}

func TestBuildRepository_UpdatePersistsState(t *testing.T) {
	database := newTestDB(t)
	repo := NewBuildRepository(database)

	b := &Build{BuildType: BuildTypeDeb}
	require.NoError(t, repo.Create(b))

	b.BuildState = BuildStateBuilding
	b.Version = "2.0.0"
	require.NoError(t, repo.Update(b))

	got, err := repo.GetByID(b.ID)
	require.NoError(t, err)
	require.Equal(t, BuildStateBuilding, got.BuildState)
	require.Equal(t, "2.0.0", got.Version)
}

func TestBuildRepository_ReassignAndCountBySourceRepository(t *testing.T) {
	database := newTestDB(t)
	repo := NewBuildRepository(database)
	repos := NewSourceRepositoryRepository(database)

	from := &SourceRepository{URL: "https://example.com/from.git"}
	require.NoError(t, repos.Create(from))
	to := &SourceRepository{URL: "https://example.com/to.git"}
	require.NoError(t, repos.Create(to))

	b := &Build{BuildType: BuildTypeSource, SourceRepository: &from.ID}
	require.NoError(t, repo.Create(b))

	count, err := repo.CountBySourceRepository(from.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, repo.ReassignSourceRepository(from.ID, to.ID))

	count, err = repo.CountBySourceRepository(from.ID)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	count, err = repo.CountBySourceRepository(to.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
