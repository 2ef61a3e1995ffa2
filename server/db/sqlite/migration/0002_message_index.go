package migration

// Migration0002 indexes messages by channel and expiry.
var Migration0002 = Migration{
	Version: 2,
	Name:    "message indexes",
	SQL: `
CREATE INDEX IF NOT EXISTS message_channel_idx ON message (channel, id);
CREATE INDEX IF NOT EXISTS message_expires_at_idx ON message (expires_at);
`,
}
