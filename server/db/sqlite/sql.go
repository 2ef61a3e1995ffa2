package sqlite

const (
	sqlCreateVersionTable = `CREATE TABLE IF NOT EXISTS version(
	  id INTEGER NOT NULL PRIMARY KEY,
	  version integer UNIQUE NOT NULL,
	  name varchar(256),
	  completed_at timestamp default current_timestamp,
	  created_at timestamp default current_timestamp
	)`

	sqlSelectMaxVersion = `SELECT MAX(version) FROM version`

	sqlSelectLatestVersion = `SELECT version, name
	  FROM version
	  ORDER BY version DESC
	  LIMIT 1`

	sqlInsertVersion = `INSERT INTO version (version, name) VALUES (?, ?)`

	sqlInsertMessage = `INSERT INTO message (message_id, channel, body, expires_at) VALUES (?, ?, ?, ?)`

	sqlSelectMessage = `SELECT id, body
	  FROM message
	  WHERE channel = ? AND expires_at > ?
	  ORDER BY id ASC
	  LIMIT 1`

	sqlDeleteMessage = `DELETE FROM message WHERE id = ?`

	sqlDeleteExpiredMessages = `DELETE FROM message WHERE expires_at <= ?`

	sqlCountMessages = `SELECT COUNT(*) FROM message`
)
