package app

import (
	"database/sql"

	"github.com/hitoshi/salescout/internal/repository"
)

// repositorySet は1つのDB接続から生成したリポジトリ群。
type repositorySet struct {
	db           *sql.DB
	trackers     *repository.PostgresTrackerRepo
	observations *repository.PostgresObservationRepo
	users        *repository.PostgresUserRepo
	jobs         *repository.PostgresJobRepo
}

func newRepositorySet(db *sql.DB) *repositorySet {
	return &repositorySet{
		db:           db,
		trackers:     repository.NewPostgresTrackerRepo(db),
		observations: repository.NewPostgresObservationRepo(db),
		users:        repository.NewPostgresUserRepo(db),
		jobs:         repository.NewPostgresJobRepo(db),
	}
}
