package sqlstore

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist. The statements are valid for
// both SQLite and PostgreSQL.
// IMPORTANT: users must be created BEFORE every table that references it.
//
// Money columns are integer cents. Timestamps are Unix seconds, except
// orders.queued_at (Unix nanoseconds) which only orders the kitchen queue.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'diner',
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_aliases (
    alias TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS user_preferences (
    user_id TEXT PRIMARY KEY,
    favourites TEXT NOT NULL,
    updated_at BIGINT NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS instruments (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    type TEXT NOT NULL,
    display_name TEXT NOT NULL,
    credential_hash TEXT NOT NULL,
    is_default BOOLEAN NOT NULL,
    balance BIGINT CHECK (balance >= 0),
    credit_limit BIGINT CHECK (credit_limit >= 0),
    created_at BIGINT NOT NULL,
    CHECK ((balance IS NULL) <> (credit_limit IS NULL)),
    FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    cafeteria_id TEXT NOT NULL,
    total_amount BIGINT NOT NULL,
    instrument_id TEXT NOT NULL,
    status TEXT NOT NULL,
    session_id TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    paid_at BIGINT NOT NULL DEFAULT 0,
    queued_at BIGINT NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users(id),
    FOREIGN KEY (instrument_id) REFERENCES instruments(id)
);

CREATE TABLE IF NOT EXISTS order_items (
    order_id TEXT NOT NULL,
    line_no INTEGER NOT NULL,
    name TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    unit_price BIGINT NOT NULL,
    PRIMARY KEY (order_id, line_no),
    FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS split_sessions (
    id TEXT PRIMARY KEY,
    initiator_user_id TEXT NOT NULL,
    cafeteria_id TEXT NOT NULL,
    total_amount BIGINT NOT NULL,
    split_method TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    expires_at BIGINT NOT NULL DEFAULT 0,
    FOREIGN KEY (initiator_user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS split_items (
    session_id TEXT NOT NULL,
    line_no INTEGER NOT NULL,
    name TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    unit_price BIGINT NOT NULL,
    PRIMARY KEY (session_id, line_no),
    FOREIGN KEY (session_id) REFERENCES split_sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS split_item_assignments (
    session_id TEXT NOT NULL,
    line_no INTEGER NOT NULL,
    identifier TEXT NOT NULL,
    PRIMARY KEY (session_id, line_no, identifier),
    FOREIGN KEY (session_id) REFERENCES split_sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS split_participants (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    identifier TEXT NOT NULL,
    user_id TEXT NOT NULL,
    amount_due BIGINT NOT NULL CHECK (amount_due >= 0),
    status TEXT NOT NULL,
    seq INTEGER NOT NULL,
    order_id TEXT NOT NULL DEFAULT '',
    UNIQUE (session_id, identifier),
    FOREIGN KEY (session_id) REFERENCES split_sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_user_aliases_user_id ON user_aliases(user_id);
CREATE INDEX IF NOT EXISTS idx_instruments_owner_id ON instruments(owner_id);
CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
CREATE INDEX IF NOT EXISTS idx_orders_cafeteria_status ON orders(cafeteria_id, status);
CREATE INDEX IF NOT EXISTS idx_split_participants_session_id ON split_participants(session_id);
CREATE INDEX IF NOT EXISTS idx_split_participants_identifier ON split_participants(identifier);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
