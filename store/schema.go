package store

// Schema holds one table per snapshot collection. Decimals are stored as
// TEXT so they round-trip exactly; times are RFC 3339 text in UTC.
const Schema = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	symbol TEXT PRIMARY KEY,
	quantity INTEGER NOT NULL,
	average_price TEXT NOT NULL,
	total_cost TEXT NOT NULL,
	current_price TEXT NOT NULL,
	last_updated TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	seq INTEGER PRIMARY KEY,
	trade_id TEXT NOT NULL UNIQUE,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	type TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	price TEXT NOT NULL,
	limit_price TEXT,
	stop_price TEXT,
	status TEXT NOT NULL,
	time TEXT NOT NULL,
	commission TEXT NOT NULL,
	total TEXT NOT NULL,
	realized_pl TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);

CREATE TABLE IF NOT EXISTS watchlist (
	seq INTEGER PRIMARY KEY,
	symbol TEXT NOT NULL UNIQUE,
	added_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	seq INTEGER PRIMARY KEY,
	time TEXT NOT NULL,
	cash TEXT NOT NULL,
	positions_value TEXT NOT NULL,
	total_value TEXT NOT NULL,
	total_pl TEXT NOT NULL
);
`
