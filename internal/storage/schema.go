package storage

const schema = `
-- The 'kv' table holds the application's durable records, one row per key.
-- Values are opaque encoded blobs owned by the caller.
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at DATETIME NOT NULL
);
`
