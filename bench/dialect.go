package bench

// Dialect holds the engine-specific SQL a Suite needs. Statements use "?"
// placeholders; they are rebound for the driver at execution time.
type Dialect struct {
	Name string

	// Quoted table names.
	UserTable string
	TaskTable string

	// TruncateUsers empties the user table and resets its identity. The
	// statements run on one connection, in order.
	TruncateUsers []string
	TruncateTasks []string

	Schema []string
}

// Postgres is the PostgreSQL dialect.
var Postgres = Dialect{
	Name:      "postgres",
	UserTable: `"user"`,
	TaskTable: `"tasks"`,
	TruncateUsers: []string{
		`TRUNCATE TABLE "user" RESTART IDENTITY CASCADE`,
	},
	TruncateTasks: []string{
		`TRUNCATE TABLE "tasks" RESTART IDENTITY`,
	},
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS "user" (
			id SERIAL PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS user_email_idx ON "user" (email)`,
		`CREATE TABLE IF NOT EXISTS "tasks" (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES "user" (id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL
		)`,
	},
}

// MariaDB is the MariaDB dialect. Truncating the parent table requires
// foreign key checks to be off for the session.
var MariaDB = Dialect{
	Name:      "mariadb",
	UserTable: "`user`",
	TaskTable: "`tasks`",
	TruncateUsers: []string{
		"SET FOREIGN_KEY_CHECKS = 0",
		"TRUNCATE TABLE `user`",
		"SET FOREIGN_KEY_CHECKS = 1",
	},
	TruncateTasks: []string{
		"TRUNCATE TABLE `tasks`",
	},
	Schema: []string{
		"CREATE TABLE IF NOT EXISTS `user` (" +
			"id INT AUTO_INCREMENT PRIMARY KEY, " +
			"username VARCHAR(255) NOT NULL, " +
			"email VARCHAR(255) NOT NULL, " +
			"password VARCHAR(255) NOT NULL, " +
			"INDEX user_email_idx (email)" +
			") ENGINE=InnoDB",
		"CREATE TABLE IF NOT EXISTS `tasks` (" +
			"id INT AUTO_INCREMENT PRIMARY KEY, " +
			"user_id INT NOT NULL, " +
			"title TEXT NOT NULL, " +
			"description TEXT NOT NULL, " +
			"FOREIGN KEY (user_id) REFERENCES `user` (id) ON DELETE CASCADE" +
			") ENGINE=InnoDB",
	},
}
