package migration

// Migration0001 is the initial migration.
var Migration0001 = Migration{
	Version: 1,
	Name:    "create tables",
	SQL: `
CREATE TABLE IF NOT EXISTS message(
  id INTEGER NOT NULL PRIMARY KEY,
  message_id uuid UNIQUE NOT NULL,
  channel varchar(128) NOT NULL,
  body blob NOT NULL,
  expires_at integer NOT NULL,
  created_at timestamp default current_timestamp
);
`,
}
