package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"samplr/config"
)

func NewCassandraSession(cfg config.DB) (*gocql.Session, error) {
	// Define the cluster configuration
	clusterConfig := gocql.NewCluster(strings.Split(cfg.Host, ",")...)
	clusterConfig.Authenticator = gocql.PasswordAuthenticator{
		Username: cfg.Username,
		Password: cfg.Password,
	}
	clusterConfig.Consistency = parseConsistency(cfg.Consistency)
	// conditional creates and compare-and-set updates run as lightweight transactions
	clusterConfig.SerialConsistency = gocql.LocalSerial
	clusterConfig.Timeout = time.Second * 5

	// Establish a session with the cluster
	session, err := clusterConfig.CreateSession()

	if err != nil {
		return nil, err
	}

	// Create a new keyspace
	err = session.Query(`CREATE KEYSPACE IF NOT EXISTS ` + cfg.Keyspace + ` WITH REPLICATION = {'class' : 'SimpleStrategy', 'replication_factor' : 1}`).Exec()
	if err != nil {
		return nil, err
	}
	session.Close()

	// Define cluster keyspace
	clusterConfig.Keyspace = cfg.Keyspace
	clusterConfig.ConnectTimeout = time.Second * 10

	// Create a new session with the new keyspace
	session, err = clusterConfig.CreateSession()
	if err != nil {
		return nil, err
	}

	if err = createTables(session, cfg.Keyspace); err != nil {
		return nil, err
	}

	return session, nil
}

func parseConsistency(level string) gocql.Consistency {
	if strings.TrimSpace(level) == "" {
		return gocql.Quorum
	}

	consistency, err := gocql.ParseConsistencyWrapper(strings.ToUpper(level))
	if err != nil {
		return gocql.Quorum
	}
	return consistency
}

func createTables(session *gocql.Session, keyspace string) error {
	for _, table := range dbTableSchemas {
		createTableCmd := fmt.Sprintf(table, keyspace)
		if err := session.Query(createTableCmd).Exec(); err != nil {
			return fmt.Errorf("failed to exec query for db table creation, CMD: %s: %w", createTableCmd, err)
		}
	}

	return nil
}
