package sqlstore

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithMigrate runs pending migrations when the store is opened.
func WithMigrate(enabled bool) Option {
	return func(s *Store) { s.migrate = enabled }
}

// WithMaxOpenConns caps the connection pool. SQLite always uses one connection.
func WithMaxOpenConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}
