package repo

import (
	"context"
	"strings"

	"github.com/gocql/gocql"

	"samplr/config"
)

type Repo struct {
	db   *gocql.Session
	conf *config.SamplrConfModel
}
type Imply interface {
	DBHealthCheck(context.Context) error
}

// NewRepo
func NewRepo(db *gocql.Session, conf *config.SamplrConfModel) Imply {
	return &Repo{db: db, conf: conf}
}

// HealthHandler
func (repo *Repo) DBHealthCheck(ctx context.Context) error {
	if err := repo.db.Query("SELECT now() FROM system.local").WithContext(ctx).Exec(); err != nil {
		return err
	}
	return nil
}

func table(conf *config.SamplrConfModel, name string) string {
	return conf.DB.Keyspace + "." + name
}

// casColumn is one equality term of a lightweight transaction condition.
// A nil value matches a column that was never written.
type casColumn struct {
	name  string
	value interface{}
}

func nullable[T any](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// casCondition renders the IF clause of a conditional update with its bind
// values. A null column never equals a zero value, so unset columns are
// compared against null.
func casCondition(columns ...casColumn) (string, []interface{}) {
	clauses := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		if col.value == nil {
			clauses = append(clauses, col.name+" = null")
			continue
		}
		clauses = append(clauses, col.name+" = ?")
		args = append(args, col.value)
	}
	return "IF " + strings.Join(clauses, " AND "), args
}
